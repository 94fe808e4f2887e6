package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	headerIdempotency     = "Idempotency-Key"
	defaultIdempotencyTTL = 24 * time.Hour
	// pendingIdempotencyTTL bounds how long a reservation left by a crashed
	// request blocks retries of the same key.
	pendingIdempotencyTTL = time.Minute
)

var (
	bucketIdempotency = []byte("idempotency")

	errIdempotencyInFlight = errors.New("request with this idempotency key is in progress")
)

type idempotencyRecord struct {
	Pending    bool      `json:"pending,omitempty"`
	StatusCode int       `json:"statusCode"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"storedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// idempotencyStore persists responses to mutating calls so a retried request
// carrying the same Idempotency-Key replays the first outcome.
type idempotencyStore struct {
	db  *bolt.DB
	ttl time.Duration
}

func openIdempotencyStore(path string, ttl time.Duration) (*idempotencyStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdempotency)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &idempotencyStore{db: db, ttl: ttl}, nil
}

func (s *idempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func idempotencyKey(caller [20]byte, method, key string) string {
	return hex.EncodeToString(caller[:]) + "|" + method + "|" + key
}

// reserve claims key for a new execution in a single transaction. When a
// completed record exists it is returned with found set. When another request
// holds the key, errIdempotencyInFlight is returned. Otherwise a pending
// marker is written and the caller must finish with put or release.
func (s *idempotencyStore) reserve(key string, now time.Time) (idempotencyRecord, bool, error) {
	var record idempotencyRecord
	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		if bucket == nil {
			return errors.New("idempotency bucket missing")
		}
		if raw := bucket.Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("decode idempotency record: %w", err)
			}
			live := record.ExpiresAt.IsZero() || !now.After(record.ExpiresAt)
			switch {
			case live && record.Pending:
				return errIdempotencyInFlight
			case live:
				found = true
				return nil
			}
		}
		record = idempotencyRecord{}
		payload, err := json.Marshal(idempotencyRecord{
			Pending:   true,
			StoredAt:  now,
			ExpiresAt: now.Add(pendingIdempotencyTTL),
		})
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), payload)
	})
	return record, found, err
}

// release drops a pending reservation so the key can be retried.
func (s *idempotencyStore) release(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		if bucket == nil {
			return errors.New("idempotency bucket missing")
		}
		return bucket.Delete([]byte(key))
	})
}

func (s *idempotencyStore) put(key string, record idempotencyRecord) error {
	if record.StoredAt.IsZero() {
		record.StoredAt = time.Now()
	}
	record.Pending = false
	record.ExpiresAt = record.StoredAt.Add(s.ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		if bucket == nil {
			return errors.New("idempotency bucket missing")
		}
		return bucket.Put([]byte(key), payload)
	})
}

// replaceID rewrites the id of a cached response to match the retried request.
func replaceID(body []byte, id json.RawMessage) []byte {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &resp); err != nil {
		return body
	}
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp["id"] = id
	out, err := json.Marshal(resp)
	if err != nil {
		return body
	}
	return append(out, '\n')
}
