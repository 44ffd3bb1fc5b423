package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// CheckQuota validates that an asset of size bytes fits next to usage bytes
// already stored.
func CheckQuota(size, usage int64) error {
	if size > common.MaxAssetSize {
		return fmt.Errorf("%w: asset is %d bytes, limit is %d", common.ErrQuotaExceeded, size, common.MaxAssetSize)
	}
	if usage+size > common.MaxTotalStorage {
		return fmt.Errorf("%w: storing %d more bytes would exceed %d (in use %d)",
			common.ErrQuotaExceeded, size, common.MaxTotalStorage, usage)
	}
	return nil
}

// AdmitAsset checks the quota and inserts a. Run it inside a Transaction so
// the usage read and the insert are atomic.
func AdmitAsset(ctx context.Context, repos *Repositories, a *models.Asset) error {
	if a.Size > common.MaxAssetSize {
		return CheckQuota(a.Size, 0)
	}

	usage, err := repos.Assets.TotalSize(ctx)
	if err != nil {
		return err
	}
	if err := CheckQuota(a.Size, usage); err != nil {
		return err
	}
	return repos.Assets.Put(ctx, a)
}
