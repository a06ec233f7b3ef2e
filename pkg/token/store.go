package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	writeOpt = opt.WriteOptions{Sync: false}
	readOpt  = opt.ReadOptions{}
)

const (
	prefixBalance   = 'b'
	prefixAllowance = 'a'
	prefixOwner     = 'o'
	prefixSupply    = 's'
	prefixMeta      = 'm'
)

// Store persists the state of every token in a single leveldb database.
// Keys are a one byte prefix followed by the token address and, where
// relevant, the account addresses.
type Store struct {
	db *leveldb.DB
	// mu serializes read-modify-write sequences across tokens.
	mu sync.Mutex
}

// OpenStore opens (or creates) a store in dir.
func OpenStore(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewMemStore returns a store backed by memory, used for devnets and tests.
func NewMemStore() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(prefix byte, token common.Address, accounts ...common.Address) []byte {
	k := make([]byte, 0, 1+common.AddressLength*(1+len(accounts)))
	k = append(k, prefix)
	k = append(k, token.Bytes()...)
	for _, a := range accounts {
		k = append(k, a.Bytes()...)
	}
	return k
}

// getBig reads an amount; missing keys are zero.
func (s *Store) getBig(k []byte) (*big.Int, error) {
	val, err := s.db.Get(k, &readOpt)
	if err == leveldb.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(val), nil
}

func (s *Store) getAddress(k []byte) (common.Address, bool, error) {
	val, err := s.db.Get(k, &readOpt)
	if err == leveldb.ErrNotFound {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(val), true, nil
}

func (s *Store) getString(k []byte) (string, error) {
	val, err := s.db.Get(k, &readOpt)
	if err == leveldb.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// batch collects writes that are applied atomically by commit.
type batch struct {
	b *leveldb.Batch
}

func newBatch() *batch {
	return &batch{b: new(leveldb.Batch)}
}

func (b *batch) putBig(k []byte, v *big.Int) {
	b.b.Put(k, v.Bytes())
}

func (b *batch) put(k, v []byte) {
	b.b.Put(k, v)
}

func (s *Store) commit(b *batch) error {
	return s.db.Write(b.b, &writeOpt)
}
