package ledger

import (
	"fmt"
	"math/big"

	"github.com/andrey/dataunion-core/internal/address"
)

// Member is the per-address record the state engine folds events into.
// Earnings only ever grow; a part'd member keeps its earnings and simply
// stops receiving new revenue until it rejoins (spec.md §3, §4.2).
type Member struct {
	Address  string
	Earnings *big.Int
	Active   bool
	Name     string
}

// NewMember creates a freshly joined member with zero earnings.
func NewMember(addr string) (*Member, error) {
	canon, err := address.Normalize(addr)
	if err != nil {
		return nil, err
	}
	return &Member{Address: canon, Earnings: big.NewInt(0), Active: true}, nil
}

// AddRevenue adds amount to the member's cumulative earnings. amount must be
// non-negative; a negative amount would violate the monotonic-earnings
// invariant (spec.md §3) and is a programmer error, not a runtime condition
// to recover from.
func (m *Member) AddRevenue(amount *big.Int) {
	if amount.Sign() < 0 {
		panic(fmt.Sprintf("ledger: negative revenue amount %s", amount.String()))
	}
	m.Earnings = new(big.Int).Add(m.Earnings, amount)
}

// SetActive flips the member's active flag without touching earnings.
func (m *Member) SetActive(active bool) {
	m.Active = active
}

// Clone returns an independent copy, used whenever a Member crosses into an
// immutable Block snapshot.
func (m *Member) Clone() Member {
	return Member{
		Address:  m.Address,
		Earnings: new(big.Int).Set(m.Earnings),
		Active:   m.Active,
		Name:     m.Name,
	}
}

// Record is the neutral, store-friendly encoding of a Member: earnings as a
// decimal string, so no precision is lost and no float ever enters the
// picture (spec.md §9).
type Record struct {
	Address  string `json:"address"`
	Earnings string `json:"earnings"`
	Active   bool   `json:"active"`
	Name     string `json:"name,omitempty"`
}

// ToRecord converts m to its neutral serialization form.
func (m *Member) ToRecord() Record {
	return Record{
		Address:  m.Address,
		Earnings: m.Earnings.String(),
		Active:   m.Active,
		Name:     m.Name,
	}
}

// MemberFromRecord reconstructs a Member from its neutral serialization form.
func MemberFromRecord(r Record) (*Member, error) {
	earnings, ok := new(big.Int).SetString(r.Earnings, 10)
	if !ok {
		return nil, fmt.Errorf("ledger: invalid earnings %q for %s", r.Earnings, r.Address)
	}
	if earnings.Sign() < 0 {
		return nil, fmt.Errorf("ledger: negative earnings %q for %s", r.Earnings, r.Address)
	}
	canon, err := address.Normalize(r.Address)
	if err != nil {
		return nil, err
	}
	return &Member{Address: canon, Earnings: earnings, Active: r.Active, Name: r.Name}, nil
}
