// Package eventlog implements an append-only log of events stored in a
// snapshot.
//
// Each record is chained to the previous one with a SHA-256 digest so that an
// observer replaying the log can detect a missing or modified record. The log
// never rewrites nor deletes a record; a record disappears only if the
// transaction that emitted it is rolled back by the store.
package eventlog

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/cnotes"
	"go.dedis.ch/cnotes/core/store"
	"go.dedis.ch/cnotes/core/store/prefixed"
	"go.dedis.ch/cnotes/crypto"
	"golang.org/x/xerrors"
)

// HashSize is the size in bytes of a record digest.
const HashSize = 32

// Kind is the type of payload carried by an event.
type Kind uint8

const (
	// KindApplicationData is the kind of the events emitted by contracts.
	KindApplicationData Kind = iota + 1

	// KindChangeLog is the kind of the events emitted by the tree engine after
	// each mutation.
	KindChangeLog
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindApplicationData:
		return "application-data"
	case KindChangeLog:
		return "change-log"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyEvent is returned when an event without payload is emitted.
	ErrEmptyEvent = xerrors.New("empty event")

	// ErrTooLarge is returned when the payload exceeds the maximum size.
	ErrTooLarge = xerrors.New("event too large")

	// ErrIntegrity is returned when the hash chain is broken.
	ErrIntegrity = xerrors.New("integrity check failed")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = xerrors.New("record not found")
)

var promRecords = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "cnotes_eventlog_records_total",
	Help: "total number of records emitted in the event log",
})

func init() {
	cnotes.PromCollectors = append(cnotes.PromCollectors, promRecords)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("failed to create cbor encoder: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("failed to create cbor decoder: " + err.Error())
	}
}

// Event is the input of the log.
type Event struct {
	Kind Kind
	Data []byte
}

// Record is an event stored in the log with its position and the digest that
// chains it to the previous record.
type Record struct {
	Index uint64 `cbor:"1,keyasint"`
	Kind  Kind   `cbor:"2,keyasint"`
	Data  []byte `cbor:"3,keyasint"`
	Hash  []byte `cbor:"4,keyasint"`
}

type header struct {
	Len  uint64 `cbor:"1,keyasint"`
	Head []byte `cbor:"2,keyasint"`
}

// Emitter is the interface to append events.
type Emitter interface {
	Emit(snap store.Snapshot, evt Event) (Record, error)
}

// Reader is the interface to read the records back.
type Reader interface {
	Len(snap store.Readable) (uint64, error)
	Get(snap store.Readable, index uint64) (Record, error)
	Records(snap store.Readable) ([]Record, error)
}

// Log is the event log stored under a dedicated namespace of the snapshot.
//
// - implements eventlog.Emitter
// - implements eventlog.Reader
type Log struct {
	prefix      []byte
	maxSize     int
	hashFactory crypto.HashFactory
}

// Option is the type of options to create a log.
type Option func(*Log)

// WithMaxSize sets the maximum size in bytes of an event payload. Zero means
// no limit.
func WithMaxSize(size int) Option {
	return func(l *Log) {
		l.maxSize = size
	}
}

// WithPrefix sets the namespace of the log in the snapshot.
func WithPrefix(prefix []byte) Option {
	return func(l *Log) {
		l.prefix = prefix
	}
}

// WithHashFactory sets the hash factory used to chain the records.
func WithHashFactory(f crypto.HashFactory) Option {
	return func(l *Log) {
		l.hashFactory = f
	}
}

// NewLog creates a new event log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		prefix:      []byte("eventlog"),
		hashFactory: crypto.NewHashFactory(crypto.Sha256),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Emit implements eventlog.Emitter. It appends the event to the log and
// returns the stored record.
func (l *Log) Emit(snap store.Snapshot, evt Event) (Record, error) {
	if len(evt.Data) == 0 {
		return Record{}, ErrEmptyEvent
	}

	if l.maxSize > 0 && len(evt.Data) > l.maxSize {
		return Record{}, xerrors.Errorf("%d > %d: %w", len(evt.Data), l.maxSize, ErrTooLarge)
	}

	ns := prefixed.NewSnapshot(l.prefix, snap)

	hdr, err := l.readHeader(ns)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Index: hdr.Len,
		Kind:  evt.Kind,
		Data:  append([]byte{}, evt.Data...),
	}

	rec.Hash, err = l.digest(hdr.Head, rec)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to hash record: %v", err)
	}

	data, err := encMode.Marshal(rec)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to encode record: %v", err)
	}

	err = ns.Set(recordKey(rec.Index), data)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to store record: %v", err)
	}

	hdr.Len++
	hdr.Head = rec.Hash

	data, err = encMode.Marshal(hdr)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to encode header: %v", err)
	}

	err = ns.Set(headerKey, data)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to store header: %v", err)
	}

	promRecords.Inc()

	return rec, nil
}

// Len implements eventlog.Reader. It returns the number of records.
func (l *Log) Len(snap store.Readable) (uint64, error) {
	hdr, err := l.readHeader(prefixed.NewReadable(l.prefix, snap))
	if err != nil {
		return 0, err
	}

	return hdr.Len, nil
}

// Get implements eventlog.Reader. It returns the record at the index without
// verifying the chain.
func (l *Log) Get(snap store.Readable, index uint64) (Record, error) {
	return l.readRecord(prefixed.NewReadable(l.prefix, snap), index)
}

// Records implements eventlog.Reader. It returns every record in order after
// verifying the hash chain up to the head.
func (l *Log) Records(snap store.Readable) ([]Record, error) {
	ns := prefixed.NewReadable(l.prefix, snap)

	hdr, err := l.readHeader(ns)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, hdr.Len)
	prev := make([]byte, HashSize)

	for i := uint64(0); i < hdr.Len; i++ {
		rec, err := l.readRecord(ns, i)
		if err != nil {
			return nil, err
		}

		digest, err := l.digest(prev, rec)
		if err != nil {
			return nil, xerrors.Errorf("failed to hash record: %v", err)
		}

		if rec.Index != i || !bytes.Equal(digest, rec.Hash) {
			return nil, xerrors.Errorf("record %d: %w", i, ErrIntegrity)
		}

		records = append(records, rec)
		prev = rec.Hash
	}

	if hdr.Len > 0 && !bytes.Equal(prev, hdr.Head) {
		return nil, xerrors.Errorf("head: %w", ErrIntegrity)
	}

	return records, nil
}

func (l *Log) readHeader(snap store.Readable) (header, error) {
	hdr := header{Head: make([]byte, HashSize)}

	data, err := snap.Get(headerKey)
	if err != nil {
		return hdr, xerrors.Errorf("failed to read header: %v", err)
	}

	if len(data) == 0 {
		return hdr, nil
	}

	err = decMode.Unmarshal(data, &hdr)
	if err != nil {
		return hdr, xerrors.Errorf("failed to decode header: %v", err)
	}

	return hdr, nil
}

func (l *Log) readRecord(snap store.Readable, index uint64) (Record, error) {
	data, err := snap.Get(recordKey(index))
	if err != nil {
		return Record{}, xerrors.Errorf("failed to read record: %v", err)
	}

	if len(data) == 0 {
		return Record{}, xerrors.Errorf("record %d: %w", index, ErrNotFound)
	}

	var rec Record
	err = decMode.Unmarshal(data, &rec)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to decode record: %v", err)
	}

	return rec, nil
}

// digest computes H(prev || index || kind || data).
func (l *Log) digest(prev []byte, rec Record) ([]byte, error) {
	h := l.hashFactory.New()

	buffer := make([]byte, 0, len(prev)+9+len(rec.Data))
	buffer = append(buffer, prev...)
	buffer = binary.BigEndian.AppendUint64(buffer, rec.Index)
	buffer = append(buffer, byte(rec.Kind))
	buffer = append(buffer, rec.Data...)

	_, err := h.Write(buffer)
	if err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

var headerKey = []byte("header")

func recordKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'r'
	binary.BigEndian.PutUint64(key[1:], index)

	return key
}
