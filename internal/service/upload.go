package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ryno2390/Co-Lab/internal/ipfs"
	"github.com/Ryno2390/Co-Lab/internal/ledger"
	"github.com/Ryno2390/Co-Lab/internal/pricing"
)

// DefaultAnnounceTimeout bounds the background indexing of an upload.
const DefaultAnnounceTimeout = 2 * time.Minute

// Announcer makes stored content searchable. Announcement is best-effort
// and runs after the upload response.
type Announcer interface {
	Announce(ctx context.Context, key string, metadata map[string]string) error
}

// UploadConfig holds the upload service dependencies.
type UploadConfig struct {
	Store           ipfs.Store
	Ledger          ledger.Ledger
	RewardPolicy    pricing.RewardPolicy
	Announcer       Announcer
	AnnounceTimeout time.Duration
	Logger          *slog.Logger
}

// UploadService stores content, pays the data reward at most once per
// content key, and kicks off background indexing.
type UploadService struct {
	store           ipfs.Store
	ledger          ledger.Ledger
	rewardPolicy    pricing.RewardPolicy
	announcer       Announcer
	announceTimeout time.Duration
	logger          *slog.Logger
}

// NewUploadService creates the upload service.
func NewUploadService(cfg UploadConfig) *UploadService {
	timeout := cfg.AnnounceTimeout
	if timeout <= 0 {
		timeout = DefaultAnnounceTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		store:           cfg.Store,
		ledger:          cfg.Ledger,
		rewardPolicy:    cfg.RewardPolicy,
		announcer:       cfg.Announcer,
		announceTimeout: timeout,
		logger:          logger,
	}
}

// UploadResult reports where content landed and what reward was paid.
type UploadResult struct {
	ContentKey string
	Reward     decimal.Decimal
	Rewarded   bool
}

// Upload stores content and credits the uploader's data reward. The reward
// record is claimed atomically before crediting, so concurrent uploads of
// identical content pay at most once; losing the claim is a normal duplicate,
// not an error. Reward failures never fail the upload itself.
func (s *UploadService) Upload(ctx context.Context, uploaderID string, content []byte, metadata map[string]string) (UploadResult, error) {
	if uploaderID == "" {
		return UploadResult{}, errors.New("missing uploader id")
	}

	key, err := s.store.Add(ctx, content)
	if err != nil {
		return UploadResult{}, fmt.Errorf("storing content: %w", err)
	}

	result := UploadResult{ContentKey: key, Reward: decimal.Zero}
	logger := s.logger.With("content_key", key, "uploader_id", uploaderID)

	claimed, err := s.ledger.MarkRewarded(ctx, key)
	switch {
	case err != nil:
		// Without the claim we cannot tell whether this content was paid
		// before; skip the reward rather than risk paying twice.
		logger.Error("failed to claim reward record, skipping reward", "error", err)
	case !claimed:
		logger.Info("duplicate content, reward already paid")
	default:
		reward := s.rewardPolicy.DataReward(int64(len(content)), metadata)
		if reward.IsPositive() {
			if err := s.ledger.Reward(ctx, uploaderID, reward); err != nil {
				// The key stays marked; the credit is lost, not retried.
				logger.Error("reward credit failed", "reward", reward.String(), "error", err)
			} else {
				result.Reward = reward
				result.Rewarded = true
				logger.Info("data reward credited", "reward", reward.String())
			}
		} else {
			logger.Info("content outside reward size bounds, no reward", "bytes", len(content))
		}
	}

	if s.announcer != nil {
		go s.announce(key, metadata)
	}

	return result, nil
}

func (s *UploadService) announce(key string, metadata map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.announceTimeout)
	defer cancel()

	if err := s.announcer.Announce(ctx, key, metadata); err != nil {
		s.logger.Error("content announcement failed", "content_key", key, "error", err)
	}
}
