package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/examtabling/internal/config"
	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/limaJavier/examtabling/pkg/sat"
	"go.mongodb.org/mongo-driver/bson"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot freezes a run so it can be inspected or checked again later
type Snapshot struct {
	Id        uuid.UUID
	CreatedAt time.Time
	Input     model.ModelInput
	Timetable model.Timetable
	Penalty   int64
	Status    sat.Status
}

// New stamps a run with a fresh id. Timestamps keep millisecond precision, the one BSON preserves
func New(input model.ModelInput, result model.BuildResult) Snapshot {
	return Snapshot{
		Id:        uuid.New(),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Input:     input,
		Timetable: result.Timetable,
		Penalty:   result.Penalty,
		Status:    result.Status,
	}
}

func Encode(snapshot Snapshot) ([]byte, error) {
	bytes, err := bson.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("cannot encode snapshot %v: %w", snapshot.Id, err)
	}
	return bytes, nil
}

func Decode(bytes []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := bson.Unmarshal(bytes, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("cannot decode snapshot: %w", err)
	}
	return snapshot, nil
}

type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, id uuid.UUID) (Snapshot, error)
}

func FromSettings(settings config.StoreSettings) (Store, error) {
	switch settings.Kind {
	case "file":
		return NewFileStore(settings.Directory)
	case "redis":
		return NewRedisStore(settings.RedisAddr, settings.RedisPassword, settings.RedisDB, settings.TTL)
	}
	return nil, fmt.Errorf("unknown store %q", settings.Kind)
}
