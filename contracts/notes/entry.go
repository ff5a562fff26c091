package notes

import (
	"encoding/binary"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// ErrMalformedEntry is returned when the data is not a valid entry.
var ErrMalformedEntry = xerrors.New("malformed entry")

// Entry is a record published in the event log for each append or update.
type Entry interface {
	// GetLeaf returns the leaf of the record.
	GetLeaf() Leaf

	// GetContent returns the text of the record.
	GetContent() string

	// Check returns nil if the leaf is the digest of the record.
	Check() error

	MarshalBinary() ([]byte, error)
}

// NoteEntry is the entry of a note. It is encoded with the Borsh layout:
// the leaf, the owner and the length-prefixed note.
//
// - implements notes.Entry
type NoteEntry struct {
	Leaf  Leaf
	Owner Identity
	Note  string
}

// GetLeaf implements notes.Entry.
func (e NoteEntry) GetLeaf() Leaf {
	return e.Leaf
}

// GetContent implements notes.Entry.
func (e NoteEntry) GetContent() string {
	return e.Note
}

// Check implements notes.Entry.
func (e NoteEntry) Check() error {
	if HashLeaf(e.Note, e.Owner) != e.Leaf {
		return xerrors.Errorf("leaf does not match the note: %w", ErrMalformedEntry)
	}

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e NoteEntry) MarshalBinary() ([]byte, error) {
	w := newWriter(len(e.Leaf) + len(e.Owner) + 4 + len(e.Note))
	w.fixed(e.Leaf[:])
	w.fixed(e.Owner[:])
	w.str(e.Note)

	return w.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The data must hold
// exactly one entry.
func (e *NoteEntry) UnmarshalBinary(data []byte) error {
	r := reader{data: data}

	var entry NoteEntry
	r.fixed(entry.Leaf[:])
	r.fixed(entry.Owner[:])
	entry.Note = r.str()

	err := r.done()
	if err != nil {
		return err
	}

	*e = entry

	return nil
}

// MessageEntry is the entry of a message. It is encoded with the Borsh layout:
// the leaf, the sender, the recipient and the length-prefixed message.
//
// - implements notes.Entry
type MessageEntry struct {
	Leaf    Leaf
	From    Identity
	To      Identity
	Message string
}

// GetLeaf implements notes.Entry.
func (e MessageEntry) GetLeaf() Leaf {
	return e.Leaf
}

// GetContent implements notes.Entry.
func (e MessageEntry) GetContent() string {
	return e.Message
}

// Check implements notes.Entry.
func (e MessageEntry) Check() error {
	if HashLeaf(e.Message, e.From) != e.Leaf {
		return xerrors.Errorf("leaf does not match the message: %w", ErrMalformedEntry)
	}

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e MessageEntry) MarshalBinary() ([]byte, error) {
	w := newWriter(len(e.Leaf) + len(e.From) + len(e.To) + 4 + len(e.Message))
	w.fixed(e.Leaf[:])
	w.fixed(e.From[:])
	w.fixed(e.To[:])
	w.str(e.Message)

	return w.buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The data must hold
// exactly one entry.
func (e *MessageEntry) UnmarshalBinary(data []byte) error {
	r := reader{data: data}

	var entry MessageEntry
	r.fixed(entry.Leaf[:])
	r.fixed(entry.From[:])
	r.fixed(entry.To[:])
	entry.Message = r.str()

	err := r.done()
	if err != nil {
		return err
	}

	*e = entry

	return nil
}

// DecodeEntry decodes the data as a note or a message entry. The layouts only
// differ by the recipient, so the leaf is used to tell them apart.
func DecodeEntry(data []byte) (Entry, error) {
	var note NoteEntry
	if note.UnmarshalBinary(data) == nil && note.Check() == nil {
		return note, nil
	}

	var msg MessageEntry
	if msg.UnmarshalBinary(data) == nil && msg.Check() == nil {
		return msg, nil
	}

	return nil, xerrors.Errorf("%d bytes: %w", len(data), ErrMalformedEntry)
}

type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) fixed(data []byte) {
	w.buf = append(w.buf, data...)
}

func (w *writer) str(s string) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// reader decodes the fields in order and remembers the first failure.
type reader struct {
	data []byte
	err  error
}

func (r *reader) fixed(out []byte) {
	if r.err != nil {
		return
	}

	if len(r.data) < len(out) {
		r.err = xerrors.Errorf("truncated field: %w", ErrMalformedEntry)
		return
	}

	copy(out, r.data)
	r.data = r.data[len(out):]
}

func (r *reader) str() string {
	var prefix [4]byte
	r.fixed(prefix[:])

	if r.err != nil {
		return ""
	}

	size := binary.LittleEndian.Uint32(prefix[:])
	if uint64(len(r.data)) < uint64(size) {
		r.err = xerrors.Errorf("truncated string: %w", ErrMalformedEntry)
		return ""
	}

	s := r.data[:size]
	r.data = r.data[size:]

	if !utf8.Valid(s) {
		r.err = xerrors.Errorf("invalid utf-8 string: %w", ErrMalformedEntry)
		return ""
	}

	return string(s)
}

func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}

	if len(r.data) > 0 {
		return xerrors.Errorf("%d trailing bytes: %w", len(r.data), ErrMalformedEntry)
	}

	return nil
}
