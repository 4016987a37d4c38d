package pmpool

import (
	"github.com/go-playground/validator/v10"

	"github.com/huynhanx03/mvtreekv/pkg/mvtreelog"
)

// MinPoolSize is the smallest pool file Open/Create will accept. It has to
// be big enough to hold the superblock plus at least one leaf and one root.
const MinPoolSize = 1 << 20 // 1 MiB

// Config describes the pool a caller wants to open or create. It plays the
// role the teacher's settings.Config plays for a service: one struct,
// validated up front with go-playground/validator before any side effect
// (file creation, mmap) happens.
type Config struct {
	// Path is the backing file. It is created if it does not exist.
	Path string `validate:"required" mapstructure:"path"`

	// Size is the pool's total byte size. Only consulted when Path does not
	// already exist; reopening an existing pool always uses its stored size.
	Size uint64 `validate:"required" mapstructure:"size"`

	// Logger configures the structured logger the pool and tree share.
	Logger mvtreelog.Config `mapstructure:"logger"`
}

var validate = validator.New()

// Validate runs struct-tag validation and the size floor that a literal tag
// can't express cleanly alongside Size's other constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return wrapConstructionError(KindValidation, err, "invalid pool config")
	}
	if c.Size < MinPoolSize {
		return newConstructionError(KindSizeTooSmall, "pool size %d below minimum %d", c.Size, MinPoolSize)
	}
	return nil
}
