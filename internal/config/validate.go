package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schema     cue.Value
	schemaErr  error

	// cue values are not safe for concurrent use.
	validateMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schema = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schema, schemaErr
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	validateMu.Lock()
	defer validateMu.Unlock()

	ctx, s, err := loadSchema()
	if err != nil {
		return err
	}
	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := s.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}
