package notes

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestNoteEntry_Layout(t *testing.T) {
	owner := makeIdentity(t)
	entry := NoteEntry{Leaf: HashLeaf("hi", owner), Owner: owner, Note: "hi"}

	data, err := entry.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 32+32+4+2)
	require.Equal(t, entry.Leaf[:], data[:32])
	require.Equal(t, owner[:], data[32:64])
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[64:68]))
	require.Equal(t, "hi", string(data[68:]))

	var decoded NoteEntry
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, entry, decoded)

	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, data, again)

	require.NoError(t, entry.Check())
	require.Equal(t, entry.Leaf, entry.GetLeaf())
	require.Equal(t, "hi", entry.GetContent())
}

func TestNoteEntry_Malformed(t *testing.T) {
	owner := makeIdentity(t)
	data, err := NoteEntry{Owner: owner, Note: "hi"}.MarshalBinary()
	require.NoError(t, err)

	var entry NoteEntry

	err = entry.UnmarshalBinary(data[:40])
	require.EqualError(t, err, "truncated field: malformed entry")

	err = entry.UnmarshalBinary(data[:66])
	require.EqualError(t, err, "truncated field: malformed entry")

	err = entry.UnmarshalBinary(data[:69])
	require.EqualError(t, err, "truncated string: malformed entry")

	err = entry.UnmarshalBinary(append(data, 0))
	require.EqualError(t, err, "1 trailing bytes: malformed entry")
	require.True(t, xerrors.Is(err, ErrMalformedEntry))

	invalid := append([]byte{}, data...)
	invalid[68] = 0xff
	err = entry.UnmarshalBinary(invalid)
	require.EqualError(t, err, "invalid utf-8 string: malformed entry")

	err = NoteEntry{Owner: owner, Note: "hi"}.Check()
	require.EqualError(t, err, "leaf does not match the note: malformed entry")
}

func TestMessageEntry_Layout(t *testing.T) {
	from := makeIdentity(t)
	to := makeIdentity(t)

	entry := MessageEntry{Leaf: HashLeaf("yo", from), From: from, To: to, Message: "yo"}

	data, err := entry.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 32*3+4+2)
	require.Equal(t, from[:], data[32:64])
	require.Equal(t, to[:], data[64:96])
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[96:100]))

	var decoded MessageEntry
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, entry, decoded)

	require.NoError(t, entry.Check())
	require.Equal(t, "yo", entry.GetContent())

	err = decoded.UnmarshalBinary(data[:90])
	require.EqualError(t, err, "truncated field: malformed entry")

	err = MessageEntry{From: from, To: to, Message: "yo"}.Check()
	require.EqualError(t, err, "leaf does not match the message: malformed entry")
}

func TestDecodeEntry(t *testing.T) {
	owner := makeIdentity(t)
	other := makeIdentity(t)

	note := NoteEntry{Leaf: HashLeaf("note", owner), Owner: owner, Note: "note"}
	data, err := note.MarshalBinary()
	require.NoError(t, err)

	entry, err := DecodeEntry(data)
	require.NoError(t, err)
	require.Equal(t, note, entry)

	msg := MessageEntry{Leaf: HashLeaf("msg", owner), From: owner, To: other, Message: "msg"}
	data, err = msg.MarshalBinary()
	require.NoError(t, err)

	entry, err = DecodeEntry(data)
	require.NoError(t, err)
	require.Equal(t, msg, entry)

	_, err = DecodeEntry([]byte{1, 2, 3})
	require.EqualError(t, err, "3 bytes: malformed entry")

	// A valid layout with a forged leaf is rejected.
	note.Note = "forged"
	data, err = note.MarshalBinary()
	require.NoError(t, err)

	_, err = DecodeEntry(data)
	require.True(t, xerrors.Is(err, ErrMalformedEntry))
}
