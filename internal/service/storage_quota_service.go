package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"profilevault/internal/domain"
)

type StorageQuotaService struct {
	quotaRepo quotaLedger
}

func NewStorageQuotaService(quotaRepo quotaLedger) *StorageQuotaService {
	return &StorageQuotaService{
		quotaRepo: quotaRepo,
	}
}

func (s *StorageQuotaService) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	return s.quotaRepo.GetQuota(ctx, ownerID)
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	quota, err := s.quotaRepo.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	usagePercent := 0.0
	if quota.MaxBytes > 0 {
		usagePercent = float64(quota.UsedBytes) / float64(quota.MaxBytes) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     quota.MaxBytes,
		UsedSpace:      quota.UsedBytes,
		AvailableSpace: quota.Remaining(),
		UsagePercent:   usagePercent,
	}, nil
}

// CheckSpaceAvailable — совещательная проверка до загрузки. Само
// обеспечение лимита делает TryReserve, здесь только ранний отказ.
func (s *StorageQuotaService) CheckSpaceAvailable(ctx context.Context, ownerID string, requiredBytes int64) (bool, error) {
	quota, err := s.quotaRepo.GetQuota(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to get quota: %w", err)
	}

	return (quota.UsedBytes + requiredBytes) <= quota.MaxBytes, nil
}

func (s *StorageQuotaService) Increase(ctx context.Context, ownerID string, deltaBytes int64) error {
	return s.quotaRepo.Increase(ctx, ownerID, deltaBytes)
}

func (s *StorageQuotaService) Decrease(ctx context.Context, ownerID string, deltaBytes int64) error {
	return s.quotaRepo.Decrease(ctx, ownerID, deltaBytes)
}

func (s *StorageQuotaService) TryReserve(ctx context.Context, ownerID string, deltaBytes int64) (bool, error) {
	return s.quotaRepo.TryReserve(ctx, ownerID, deltaBytes)
}

func (s *StorageQuotaService) SetProfilePictureBytes(ctx context.Context, ownerID string, newSize, expectedOldSize int64) error {
	return s.quotaRepo.SetProfilePictureBytes(ctx, ownerID, newSize, expectedOldSize)
}

// UpdateQuotaLimit меняет лимит пользователя. Только для администратора.
func (s *StorageQuotaService) UpdateQuotaLimit(ctx context.Context, p domain.Principal, ownerID string, newLimit int64) error {
	if !p.IsAdmin() {
		return domain.ErrAccessDenied
	}
	if newLimit < 0 {
		return fmt.Errorf("new quota limit cannot be negative")
	}
	return s.quotaRepo.UpdateQuotaLimit(ctx, ownerID, newLimit)
}

// Reconcile пересчитывает used_bytes одного пользователя из реестра файлов.
func (s *StorageQuotaService) Reconcile(ctx context.Context, ownerID string) error {
	return s.quotaRepo.RecalculateUsedSpace(ctx, ownerID)
}

// ReconcileAll выправляет дрейф учета по всем пользователям. Запускается
// по таймеру из main.
func (s *StorageQuotaService) ReconcileAll(ctx context.Context) error {
	owners, err := s.quotaRepo.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list quota owners: %w", err)
	}

	var failures int
	for _, owner := range owners {
		if err := s.quotaRepo.RecalculateUsedSpace(ctx, owner); err != nil {
			log.Printf("[QuotaService] failed to reconcile quota for %s: %v", owner, err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("failed to reconcile %d of %d quotas", failures, len(owners))
	}
	return nil
}

// RunReconciliation периодически выправляет дрейф учета, пока жив контекст.
// Запускается в отдельной горутине из main.
func (s *StorageQuotaService) RunReconciliation(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.ReconcileAll(ctx); err != nil {
				log.Printf("[QuotaService] reconciliation pass failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
