package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// stubFillStore is an in-memory FillStore for tracker tests.
type stubFillStore struct {
	levels map[common.Hash]uint64
	fail   error
}

func newStubFillStore() *stubFillStore {
	return &stubFillStore{levels: make(map[common.Hash]uint64)}
}

func (s *stubFillStore) Fill(hash common.Hash) (uint64, error) {
	if s.fail != nil {
		return 0, s.fail
	}
	return s.levels[hash], nil
}

func (s *stubFillStore) SetFills(levels map[common.Hash]uint64) error {
	if s.fail != nil {
		return s.fail
	}
	for h, l := range levels {
		s.levels[h] = l
	}
	return nil
}

func fillOrder(maxFill, listing, expiration uint64) *Order {
	return &Order{
		Maker:          common.HexToAddress("0x01"),
		MaximumFill:    maxFill,
		ListingTime:    listing,
		ExpirationTime: expiration,
		Salt:           big.NewInt(1),
	}
}

func TestFillTrackerWindow(t *testing.T) {
	tracker := NewFillTracker(newStubFillStore())
	order := fillOrder(1, 100, 200)
	hash := common.HexToHash("0xaa")

	for _, tc := range []struct {
		now uint64
		ok  bool
	}{
		{99, false},  // before listing
		{100, true},  // listing time is inclusive
		{150, true},  // inside window
		{199, true},  // last valid second
		{200, false}, // expiration is exclusive
		{201, false},
	} {
		_, err := tracker.Check(order, hash, 1, tc.now)
		if tc.ok && err != nil {
			t.Errorf("now=%d: unexpected error %v", tc.now, err)
		}
		if !tc.ok && !errors.Is(err, ErrOrderExpired) {
			t.Errorf("now=%d: err = %v, want ErrOrderExpired", tc.now, err)
		}
	}
}

func TestFillTrackerCapacity(t *testing.T) {
	store := newStubFillStore()
	tracker := NewFillTracker(store)
	order := fillOrder(3, 0, 1000)
	hash := common.HexToHash("0xbb")

	current, err := tracker.Check(order, hash, 2, 10)
	if err != nil || current != 0 {
		t.Fatalf("check = (%d, %v), want (0, nil)", current, err)
	}

	if err := tracker.Commit(map[common.Hash]uint64{hash: 2}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// one unit left
	if _, err := tracker.Check(order, hash, 1, 10); err != nil {
		t.Fatalf("check within capacity failed: %v", err)
	}
	if _, err := tracker.Check(order, hash, 2, 10); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}

	if level, _ := tracker.Level(hash); level != 2 {
		t.Errorf("level = %d, want 2", level)
	}
}

func TestFillTrackerZeroCapacityOrder(t *testing.T) {
	tracker := NewFillTracker(newStubFillStore())
	order := fillOrder(0, 0, 1000)

	_, err := tracker.Check(order, common.HexToHash("0xcc"), 1, 10)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}

func TestFillTrackerStoreError(t *testing.T) {
	store := newStubFillStore()
	store.fail = errors.New("disk gone")
	tracker := NewFillTracker(store)

	_, err := tracker.Check(fillOrder(1, 0, 1000), common.HexToHash("0xdd"), 1, 10)
	if err == nil || errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrOrderExpired) {
		t.Fatalf("store error not surfaced: %v", err)
	}
}
