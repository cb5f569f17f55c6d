package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilevault/internal/domain"
)

func newSectionServiceForTest() (*SectionService, *fakeLedger, *fakeRegistry, *fakeSections, *fakeStorage) {
	ledger := newFakeLedger()
	registry := newFakeRegistry()
	sections := newFakeSections()
	storage := newFakeStorage()
	svc := NewSectionService(sections, registry, storage, NewStorageQuotaService(ledger))
	return svc, ledger, registry, sections, storage
}

func TestInitProfileCreatesQuotaRow(t *testing.T) {
	svc, ledger, _, sections, _ := newSectionServiceForTest()

	profile, err := svc.InitProfile(context.Background(), domain.Principal{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.OwnerID)
	assert.Equal(t, 1, profile.Level)

	_, ok := sections.profiles["user-1"]
	assert.True(t, ok)

	quota := ledger.quotas["user-1"]
	require.NotNil(t, quota)
	assert.Equal(t, domain.DefaultQuotaBytes, quota.MaxBytes)
}

func TestGetProfileStrangerSeesOnlyPublic(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("owner", nil)
	sections.seedSection("owner", "private", false)
	publicID := sections.seedSection("owner", "public", true)

	result, err := svc.GetProfile(context.Background(), domain.Principal{UserID: "stranger"}, "owner")
	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, publicID, result.Sections[0].ID)

	result, err = svc.GetProfile(context.Background(), domain.Principal{UserID: "owner"}, "owner")
	require.NoError(t, err)
	assert.Len(t, result.Sections, 2)

	admin := domain.Principal{UserID: "root", Role: domain.RoleAdmin}
	result, err = svc.GetProfile(context.Background(), admin, "owner")
	require.NoError(t, err)
	assert.Len(t, result.Sections, 2)
}

func TestUpdateProfileSectionLimitForUserRole(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("user-1", nil)

	inputs := []domain.SectionInput{
		{ID: -1, Title: "one"},
		{ID: -2, Title: "two"},
	}

	_, err := svc.UpdateProfile(context.Background(), domain.Principal{UserID: "user-1"}, "bio", inputs)

	require.ErrorIs(t, err, domain.ErrSectionLimitExceeded)
	// Лимит проверяется до любой записи
	assert.Zero(t, sections.writeCalls)
}

func TestUpdateProfileUserRoleCannotOwnSecondSection(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("user-1", nil)
	sections.seedSection("user-1", "existing", false)

	// Одна новая секция в запросе, но одна уже во владении — итого две
	inputs := []domain.SectionInput{{ID: -1, Title: "second"}}

	_, err := svc.UpdateProfile(context.Background(), domain.Principal{UserID: "user-1"}, "bio", inputs)

	require.ErrorIs(t, err, domain.ErrSectionLimitExceeded)
	assert.Zero(t, sections.writeCalls)
	assert.Len(t, sections.sections, 1)
}

func TestUpdateProfileUserRoleFirstSection(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("user-1", nil)

	mapping, err := svc.UpdateProfile(context.Background(), domain.Principal{UserID: "user-1"}, "bio",
		[]domain.SectionInput{{ID: -1, Title: "first"}})

	require.NoError(t, err)
	require.Len(t, mapping, 1)
	assert.Len(t, sections.sections, 1)
}

func TestUpdateProfileUserRoleUpdatesOwnSection(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("user-1", nil)
	sectionID := sections.seedSection("user-1", "old", false)

	// Обновление уже существующей секции владение не увеличивает
	_, err := svc.UpdateProfile(context.Background(), domain.Principal{UserID: "user-1"}, "bio",
		[]domain.SectionInput{{Existing: true, ID: sectionID, Title: "new"}})

	require.NoError(t, err)
	assert.Equal(t, "new", sections.sections[sectionID].Title)
}

func TestUpdateProfileAdminMultipleSections(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("root", nil)

	admin := domain.Principal{UserID: "root", Role: domain.RoleAdmin}
	inputs := []domain.SectionInput{
		{ID: -1, Title: "one"},
		{ID: -2, Title: "two"},
	}

	mapping, err := svc.UpdateProfile(context.Background(), admin, "bio", inputs)
	require.NoError(t, err)

	// Временные id отображены в назначенные базой
	require.Len(t, mapping, 2)
	assert.NotZero(t, mapping[-1])
	assert.NotZero(t, mapping[-2])
	assert.NotEqual(t, mapping[-1], mapping[-2])
	assert.Equal(t, "bio", sections.profiles["root"].Bio)
}

func TestUpdateProfileMixedExistingAndNew(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("user-1", nil)
	existingID := sections.seedSection("user-1", "old title", false)

	admin := domain.Principal{UserID: "user-1", Role: domain.RoleAdmin}
	inputs := []domain.SectionInput{
		{Existing: true, ID: existingID, Title: "new title", IsPublic: true},
		{ID: -1, Title: "brand new"},
	}

	mapping, err := svc.UpdateProfile(context.Background(), admin, "", inputs)
	require.NoError(t, err)

	assert.Equal(t, "new title", sections.sections[existingID].Title)
	assert.True(t, sections.sections[existingID].IsPublic)
	require.Len(t, mapping, 1)
	assert.Equal(t, "brand new", sections.sections[mapping[-1]].Title)
}

func TestUpdateProfileNoProfile(t *testing.T) {
	svc, _, _, _, _ := newSectionServiceForTest()

	_, err := svc.UpdateProfile(context.Background(), domain.Principal{UserID: "ghost"}, "bio", nil)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestDeleteSectionsEmptyInput(t *testing.T) {
	svc, _, _, _, _ := newSectionServiceForTest()

	err := svc.DeleteSections(context.Background(), domain.Principal{UserID: "user-1"}, "", nil)
	require.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestDeleteSectionsWithFiles(t *testing.T) {
	svc, ledger, registry, sections, storage := newSectionServiceForTest()
	ledger.seed("user-1", 3000, 10_000, 0)
	sections.seedProfile("user-1", nil)
	sectionID := sections.seedSection("user-1", "docs", false)

	key1 := sectionFileKey("user-1", sectionID, "a")
	key2 := sectionFileKey("user-1", sectionID, "b")
	registry.files[key1] = domain.File{ExternalID: key1, SectionID: sectionID, SizeBytes: 1000, OwnerID: "user-1"}
	registry.files[key2] = domain.File{ExternalID: key2, SectionID: sectionID, SizeBytes: 2000, OwnerID: "user-1"}
	storage.objects[key1] = bytesOfSize(1000)
	storage.objects[key2] = bytesOfSize(2000)

	err := svc.DeleteSections(context.Background(), domain.Principal{UserID: "user-1"}, "", []int64{sectionID})
	require.NoError(t, err)

	assert.Empty(t, storage.objects)
	assert.Contains(t, storage.deletedFolders, sectionFolderPrefix("user-1", sectionID))
	_, exists := sections.sections[sectionID]
	assert.False(t, exists)
	assert.Equal(t, int64(0), ledger.used("user-1"))
}

func TestDeleteSectionsExternalFailureKeepsRecords(t *testing.T) {
	svc, ledger, registry, sections, storage := newSectionServiceForTest()
	ledger.seed("user-1", 1000, 10_000, 0)
	sections.seedProfile("user-1", nil)
	sectionID := sections.seedSection("user-1", "docs", false)

	key := sectionFileKey("user-1", sectionID, "a")
	registry.files[key] = domain.File{ExternalID: key, SectionID: sectionID, SizeBytes: 1000, OwnerID: "user-1"}
	storage.objects[key] = bytesOfSize(1000)
	storage.failKeys[key] = true

	err := svc.DeleteSections(context.Background(), domain.Principal{UserID: "user-1"}, "", []int64{sectionID})
	require.Error(t, err)

	// Хранилище отказало до удаления строк: всё на месте, операцию
	// можно повторить
	_, exists := sections.sections[sectionID]
	assert.True(t, exists)
	assert.Len(t, registry.files, 1)
	assert.Equal(t, int64(1000), ledger.used("user-1"))
}

func TestDeleteSectionsForeignSection(t *testing.T) {
	svc, _, _, sections, _ := newSectionServiceForTest()
	sections.seedProfile("owner", nil)
	sections.seedProfile("user-1", nil)
	foreignID := sections.seedSection("owner", "docs", false)

	err := svc.DeleteSections(context.Background(), domain.Principal{UserID: "user-1"}, "", []int64{foreignID})
	require.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestDeleteSectionsAdminForUser(t *testing.T) {
	svc, ledger, registry, sections, _ := newSectionServiceForTest()
	ledger.seed("alice", 500, 10_000, 0)
	sections.seedProfile("alice", nil)
	sectionID := sections.seedSection("alice", "docs", false)

	key := sectionFileKey("alice", sectionID, "a")
	registry.files[key] = domain.File{ExternalID: key, SectionID: sectionID, SizeBytes: 500, OwnerID: "alice"}

	admin := domain.Principal{UserID: "root", Role: domain.RoleAdmin}
	err := svc.DeleteSections(context.Background(), admin, "alice", []int64{sectionID})
	require.NoError(t, err)

	assert.Equal(t, int64(0), ledger.used("alice"))
	_, exists := sections.sections[sectionID]
	assert.False(t, exists)
}
