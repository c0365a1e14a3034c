package storage

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// Amounts and counters are uint64 and stored as NUMERIC(20,0) since BIGINT
// cannot hold the full range.

// Numeric is a scan target for NUMERIC columns holding uint64 values
type Numeric struct {
	pgtype.Numeric
}

// NumericFromUint64 encodes a uint64 query parameter
func NumericFromUint64(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

// Uint64 decodes the scanned value
func (n Numeric) Uint64() (uint64, error) {
	if !n.Valid {
		return 0, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric value is not finite")
	}

	v := new(big.Int).Set(n.Int)
	ten := big.NewInt(10)
	if n.Exp > 0 {
		v.Mul(v, new(big.Int).Exp(ten, big.NewInt(int64(n.Exp)), nil))
	} else if n.Exp < 0 {
		var rem big.Int
		v.QuoRem(v, new(big.Int).Exp(ten, big.NewInt(int64(-n.Exp)), nil), &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric value is not an integer")
		}
	}

	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("numeric value out of uint64 range")
	}
	return v.Uint64(), nil
}
