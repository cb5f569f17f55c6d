package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"profilevault/internal/domain"
	"profilevault/internal/service/s3"
)

// Фейки хранилищ для тестов оркестраторов. Семантика повторяет контракт
// репозиториев: атомарный пол при decrement, условный TryReserve,
// сверка stored-значения в SetProfilePictureBytes.

type fakeLedger struct {
	quotas map[string]*domain.StorageQuota

	tryReserveDenied bool
	failSetPicture   bool

	increaseCalls int
	decreaseCalls int
	recalcCalls   int64 // читается из другой горутины, только атомарно
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{quotas: make(map[string]*domain.StorageQuota)}
}

func (f *fakeLedger) seed(ownerID string, used, max, picture int64) {
	f.quotas[ownerID] = &domain.StorageQuota{
		OwnerID:             ownerID,
		UsedBytes:           used,
		MaxBytes:            max,
		ProfilePictureBytes: picture,
	}
}

func (f *fakeLedger) GetQuota(_ context.Context, ownerID string) (*domain.StorageQuota, error) {
	q, ok := f.quotas[ownerID]
	if !ok {
		q = &domain.StorageQuota{OwnerID: ownerID, MaxBytes: domain.DefaultQuotaBytes}
		f.quotas[ownerID] = q
	}
	copied := *q
	return &copied, nil
}

func (f *fakeLedger) Increase(ctx context.Context, ownerID string, delta int64) error {
	f.increaseCalls++
	q, _ := f.GetQuota(ctx, ownerID)
	f.quotas[ownerID].UsedBytes = q.UsedBytes + delta
	return nil
}

func (f *fakeLedger) Decrease(ctx context.Context, ownerID string, delta int64) error {
	f.decreaseCalls++
	q, _ := f.GetQuota(ctx, ownerID)
	used := q.UsedBytes - delta
	if used < 0 {
		used = 0
	}
	f.quotas[ownerID].UsedBytes = used
	return nil
}

func (f *fakeLedger) TryReserve(ctx context.Context, ownerID string, delta int64) (bool, error) {
	if f.tryReserveDenied {
		return false, nil
	}
	q, _ := f.GetQuota(ctx, ownerID)
	if q.UsedBytes+delta > q.MaxBytes {
		return false, nil
	}
	f.quotas[ownerID].UsedBytes = q.UsedBytes + delta
	return true, nil
}

func (f *fakeLedger) SetProfilePictureBytes(ctx context.Context, ownerID string, newSize, expectedOldSize int64) error {
	if f.failSetPicture {
		return fmt.Errorf("ledger unavailable")
	}
	q, _ := f.GetQuota(ctx, ownerID)
	storedOld := q.ProfilePictureBytes
	used := q.UsedBytes + (newSize - storedOld)
	if used < 0 {
		used = 0
	}
	f.quotas[ownerID].UsedBytes = used
	f.quotas[ownerID].ProfilePictureBytes = newSize
	return nil
}

func (f *fakeLedger) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if _, ok := f.quotas[ownerID]; !ok {
		return domain.ErrUserNotFound
	}
	f.quotas[ownerID].MaxBytes = newLimit
	return nil
}

func (f *fakeLedger) RecalculateUsedSpace(_ context.Context, _ string) error {
	atomic.AddInt64(&f.recalcCalls, 1)
	return nil
}

func (f *fakeLedger) recalcCount() int64 {
	return atomic.LoadInt64(&f.recalcCalls)
}

func (f *fakeLedger) ListOwners(_ context.Context) ([]string, error) {
	owners := make([]string, 0, len(f.quotas))
	for owner := range f.quotas {
		owners = append(owners, owner)
	}
	return owners, nil
}

func (f *fakeLedger) used(ownerID string) int64 {
	if q, ok := f.quotas[ownerID]; ok {
		return q.UsedBytes
	}
	return 0
}

type fakeRegistry struct {
	files map[string]domain.File

	failSaveMany bool
	saveCalls    int
	deleteCalls  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{files: make(map[string]domain.File)}
}

func (f *fakeRegistry) SaveMany(_ context.Context, files []domain.File) error {
	if len(files) == 0 {
		return nil
	}
	f.saveCalls++
	if f.failSaveMany {
		return fmt.Errorf("database unavailable")
	}
	for _, file := range files {
		f.files[file.ExternalID] = file
	}
	return nil
}

func (f *fakeRegistry) FindBySection(_ context.Context, sectionID int64) ([]domain.File, error) {
	var result []domain.File
	for _, file := range f.files {
		if file.SectionID == sectionID {
			result = append(result, file)
		}
	}
	return result, nil
}

func (f *fakeRegistry) DeleteByExternalIDs(_ context.Context, externalIDs []string) ([]domain.File, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	f.deleteCalls++
	var deleted []domain.File
	for _, id := range externalIDs {
		if file, ok := f.files[id]; ok {
			deleted = append(deleted, file)
			delete(f.files, id)
		}
	}
	return deleted, nil
}

func (f *fakeRegistry) SizesBySections(_ context.Context, sectionIDs []int64) ([]domain.FileSize, error) {
	var sizes []domain.FileSize
	for _, file := range f.files {
		for _, id := range sectionIDs {
			if file.SectionID == id {
				sizes = append(sizes, domain.FileSize{ExternalID: file.ExternalID, SizeBytes: file.SizeBytes})
			}
		}
	}
	return sizes, nil
}

func (f *fakeRegistry) SumSizesByOwner(_ context.Context, ownerID string) (int64, error) {
	var total int64
	for _, file := range f.files {
		if file.OwnerID == ownerID {
			total += file.SizeBytes
		}
	}
	return total, nil
}

type fakeSections struct {
	profiles map[string]*domain.Profile
	sections map[int64]*domain.Section
	nextID   int64

	failPictureKey bool
	writeCalls     int
}

func newFakeSections() *fakeSections {
	return &fakeSections{
		profiles: make(map[string]*domain.Profile),
		sections: make(map[int64]*domain.Section),
		nextID:   1,
	}
}

func (f *fakeSections) seedProfile(ownerID string, pictureKey *string) {
	f.profiles[ownerID] = &domain.Profile{OwnerID: ownerID, Level: 1, ProfilePictureKey: pictureKey}
}

func (f *fakeSections) seedSection(ownerID, title string, isPublic bool) int64 {
	id := f.nextID
	f.nextID++
	f.sections[id] = &domain.Section{ID: id, OwnerID: ownerID, Title: title, IsPublic: isPublic}
	return id
}

func (f *fakeSections) GetProfile(_ context.Context, ownerID string) (*domain.Profile, error) {
	p, ok := f.profiles[ownerID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeSections) CreateProfile(_ context.Context, profile *domain.Profile) error {
	if _, ok := f.profiles[profile.OwnerID]; ok {
		return nil
	}
	copied := *profile
	f.profiles[profile.OwnerID] = &copied
	return nil
}

func (f *fakeSections) GetSectionsForUser(_ context.Context, ownerID string, onlyPublic bool) ([]domain.Section, error) {
	var result []domain.Section
	for _, s := range f.sections {
		if s.OwnerID != ownerID {
			continue
		}
		if onlyPublic && !s.IsPublic {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (f *fakeSections) GetSectionByID(_ context.Context, sectionID int64) (*domain.Section, error) {
	s, ok := f.sections[sectionID]
	if !ok {
		return nil, domain.ErrSectionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSections) UpdateProfile(_ context.Context, ownerID, bio string, sections []domain.SectionInput) (map[int64]int64, error) {
	f.writeCalls++
	profile, ok := f.profiles[ownerID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	profile.Bio = bio

	mapping := make(map[int64]int64)
	for _, input := range sections {
		if input.Existing {
			s, ok := f.sections[input.ID]
			if !ok || s.OwnerID != ownerID {
				return nil, domain.ErrSectionNotFound
			}
			s.Title = input.Title
			s.Description = input.Description
			s.IsPublic = input.IsPublic
			continue
		}
		id := f.nextID
		f.nextID++
		f.sections[id] = &domain.Section{
			ID:          id,
			OwnerID:     ownerID,
			Title:       input.Title,
			Description: input.Description,
			IsPublic:    input.IsPublic,
		}
		mapping[input.ID] = id
	}
	return mapping, nil
}

func (f *fakeSections) DeleteSectionsByIDs(_ context.Context, sectionIDs []int64, ownerID string) error {
	for _, id := range sectionIDs {
		if s, ok := f.sections[id]; ok && s.OwnerID == ownerID {
			delete(f.sections, id)
		}
	}
	return nil
}

func (f *fakeSections) UpdateProfilePictureKey(_ context.Context, ownerID string, key *string) error {
	if f.failPictureKey {
		return fmt.Errorf("database unavailable")
	}
	profile, ok := f.profiles[ownerID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	profile.ProfilePictureKey = key
	return nil
}

type fakeStorage struct {
	objects map[string][]byte

	failKeys       map[string]bool // ключи, которые DeleteObjects не удалит
	deletedFolders []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:  make(map[string][]byte),
		failKeys: make(map[string]bool),
	}
}

func (f *fakeStorage) UploadFile(_ context.Context, key string, file multipart.File) (*s3.UploadResult, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.UploadResult{Key: key, URL: f.ObjectURL(key), SizeBytes: int64(len(data))}, nil
}

func (f *fakeStorage) UploadBytes(_ context.Context, key string, data []byte, _ string) (*s3.UploadResult, error) {
	f.objects[key] = data
	return &s3.UploadResult{Key: key, URL: f.ObjectURL(key), SizeBytes: int64(len(data))}, nil
}

func (f *fakeStorage) GetObject(_ context.Context, key string) (s3.Object, error) {
	if _, ok := f.objects[key]; !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return nil, fmt.Errorf("not supported in fake")
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) DeleteObjects(_ context.Context, keys []string) ([]string, error) {
	var failed []string
	for _, key := range keys {
		if f.failKeys[key] {
			failed = append(failed, key)
			continue
		}
		delete(f.objects, key)
	}
	return failed, nil
}

func (f *fakeStorage) DeleteFolder(_ context.Context, prefix string) error {
	f.deletedFolders = append(f.deletedFolders, prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeStorage) ObjectURL(key string) string {
	return "https://storage.test/bucket/" + key
}

// makeFileHeaders собирает настоящую multipart-форму, чтобы получить
// honest *multipart.FileHeader с размерами и типами как в реальном запросе.
func makeFileHeaders(t *testing.T, contentType string, payloads ...[]byte) []*multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, payload := range payloads {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename="file%d.bin"`, i))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()) + 1024)
	require.NoError(t, err)

	return form.File["files"]
}

func bytesOfSize(n int) []byte {
	return bytes.Repeat([]byte{'a'}, n)
}
