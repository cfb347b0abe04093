package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/viant/sqlite-dedup/vector"
	sqlite "modernc.org/sqlite"
)

var registerOnce sync.Once

// RegisterVectorFunctions registers vec_cosine, vec_cosine_distance and
// vec_l2 with the driver so they are available on new connections opened
// after this call. Existing open connections will not see new functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	var err error
	registerOnce.Do(func() {
		for name, fn := range map[string]func(a, b []float32) (float64, error){
			"vec_cosine":          vector.CosineSimilarity,
			"vec_cosine_distance": vector.CosineDistance,
			"vec_l2":              vector.L2Distance,
		} {
			if e := sqlite.RegisterDeterministicScalarFunction(name, 2, binary(name, fn)); e != nil && err == nil {
				err = fmt.Errorf("engine: register %s: %w", name, e)
			}
		}
	})
	return err
}

func binary(name string, fn func(a, b []float32) (float64, error)) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asEmbedding(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asEmbedding(args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		// Vectors that cannot be compared (dimension mismatch, zero
		// magnitude) yield NULL and drop out of range predicates.
		v, err := fn(a, b)
		if err != nil {
			return nil, nil
		}
		return v, nil
	}
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeEmbedding(v)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB", arg)
	}
}
