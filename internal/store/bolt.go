package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/property"
)

// KindBolt — вид хранилища в файле bbolt.
const KindBolt = "bolt"

const defaultBucket = "nuts"

// Bolt — хранилище ресурсов в bucket файла bbolt.
type Bolt struct {
	watchers

	file   string
	db     *bolt.DB
	bucket []byte

	closeOnce sync.Once
	closed    atomic.Bool
}

func (b *Bolt) isClosed() bool { return b.closed.Load() }

// sharedDB — открытый файл и число хранилищ, которые его используют.
// bbolt держит эксклюзивную блокировку файла, поэтому повторная
// регистрация того же файла должна получить тот же *bolt.DB.
type sharedDB struct {
	db   *bolt.DB
	refs int
}

var (
	openMu  sync.Mutex
	openDBs = make(map[string]*sharedDB)
)

// OpenBolt открывает (или создаёт) файл и bucket.
func OpenBolt(file, bucket string) (*Bolt, error) {
	openMu.Lock()
	defer openMu.Unlock()

	shared, ok := openDBs[file]
	if !ok {
		db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("open bolt %s: %w", file, err)
		}
		shared = &sharedDB{db: db}
	}

	err := shared.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		if shared.refs == 0 {
			shared.db.Close()
		}
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	shared.refs++
	openDBs[file] = shared
	return &Bolt{file: file, db: shared.db, bucket: []byte(bucket)}, nil
}

// release закрывает файл, когда его не использует ни одно хранилище.
func release(file string) {
	openMu.Lock()
	defer openMu.Unlock()

	shared, ok := openDBs[file]
	if !ok {
		return
	}
	shared.refs--
	if shared.refs <= 0 {
		shared.db.Close()
		delete(openDBs, file)
	}
}

// Fetch возвращает ресурсы bucket по пути.
// Содержимое копируется из транзакции.
func (b *Bolt) Fetch(ctx context.Context, path string) ([]domain.Resource, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}

	var out []domain.Resource

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)

		var all []string
		if err := bucket.ForEach(func(k, _ []byte) error {
			all = append(all, string(k))
			return nil
		}); err != nil {
			return err
		}

		names, err := filterNames(path, all)
		if err != nil {
			return err
		}
		for _, name := range names {
			typ, err := domain.TypeForPath(name)
			if err != nil {
				continue
			}
			out = append(out, domain.NewNut(name, typ, bucket.Get([]byte(name))))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SupportsSave всегда true.
func (b *Bolt) SupportsSave() bool { return true }

// Save записывает ресурс в bucket.
func (b *Bolt) Save(ctx context.Context, r domain.Resource) error {
	if b.isClosed() {
		return ErrClosed
	}
	name, err := cleanName(r.Name())
	if err != nil {
		return err
	}
	data, err := domain.ReadAll(ctx, r)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.Name(), err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Shutdown отпускает файл. Последнее хранилище закрывает его.
func (b *Bolt) Shutdown() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		release(b.file)
	})
}

// Checksum возвращает контрольную сумму ресурсов по пути.
func (b *Bolt) Checksum(ctx context.Context, path string) (string, error) {
	resources, err := b.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	return checksumOf(ctx, resources)
}

// Poll проверяет наблюдаемые пути.
func (b *Bolt) Poll(ctx context.Context) error {
	return b.poll(ctx, b.Checksum)
}

// BoltBuilder строит Bolt.
//
// Свойства:
//   - path: string, файл базы (обязательно)
//   - bucket: string, по умолчанию "nuts"
type BoltBuilder struct {
	path   string
	bucket string
}

// NewBoltBuilder создаёт builder.
func NewBoltBuilder() Builder {
	return &BoltBuilder{bucket: defaultBucket}
}

// Configure задаёт свойство.
func (b *BoltBuilder) Configure(key string, value any) error {
	var err error
	switch key {
	case "path":
		b.path, err = property.String(key, value)
	case "bucket":
		b.bucket, err = property.String(key, value)
	default:
		err = property.Unsupported(key)
	}
	return err
}

// Build открывает файл.
func (b *BoltBuilder) Build() (Store, error) {
	if strings.TrimSpace(b.path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if b.bucket == "" {
		return nil, fmt.Errorf("%w: bucket is empty", ErrInvalidConfig)
	}
	s, err := OpenBolt(b.path, b.bucket)
	if err != nil {
		return nil, err
	}
	return s, nil
}
