package object

import (
	"bytes"
	"errors"
	"testing"
)

func TestMarshalUnmarshalCommit(t *testing.T) {
	orig := &CommitObj{
		TreeHash: Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents: []Hash{
			Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		},
		User:      "alice",
		Timestamp: 1700000000,
		Message:   "initial snapshot\n\nWith a multi-line body.",
	}
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash {
		t.Errorf("TreeHash: got %q, want %q", got.TreeHash, orig.TreeHash)
	}
	if len(got.Parents) != len(orig.Parents) {
		t.Fatalf("Parents length: got %d, want %d", len(got.Parents), len(orig.Parents))
	}
	for i, p := range got.Parents {
		if p != orig.Parents[i] {
			t.Errorf("Parents[%d]: got %q, want %q", i, p, orig.Parents[i])
		}
	}
	if got.User != orig.User {
		t.Errorf("User: got %q, want %q", got.User, orig.User)
	}
	if got.Timestamp != orig.Timestamp {
		t.Errorf("Timestamp: got %d, want %d", got.Timestamp, orig.Timestamp)
	}
	if got.Message != orig.Message {
		t.Errorf("Message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestMarshalCommitNoParents(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		User:      "bob",
		Timestamp: 1700000001,
		Message:   "root snapshot",
	}
	got, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 0 {
		t.Errorf("Parents should be empty, got %d", len(got.Parents))
	}
}

func TestMarshalCommitDeterminism(t *testing.T) {
	c := &CommitObj{
		TreeHash:  Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents:   []Hash{Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		User:      "test",
		Timestamp: 100,
		Message:   "msg",
	}
	if !bytes.Equal(MarshalCommit(c), MarshalCommit(c)) {
		t.Error("Commit marshal not deterministic")
	}
}

func TestMarshalUnmarshalCommitWithSignature(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		User:      "signed",
		Timestamp: 1700000003,
		Signature: "sshsig-v1:ssh-ed25519:AAAA:BBBB",
		Message:   "signed snapshot",
	}
	got, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.Signature != orig.Signature {
		t.Fatalf("Signature: got %q, want %q", got.Signature, orig.Signature)
	}

	payload := CommitSigningPayload(orig)
	if bytes.Contains(payload, []byte("\nsignature ")) {
		t.Fatalf("signing payload must not contain the signature: %q", payload)
	}
}

func TestUnmarshalCommitRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"no separator": "tree aaaa",
		"unknown key":  "tree " + string(HashBytes(nil)) + "\nbogus x\n\nmsg",
		"bad time":     "tree " + string(HashBytes(nil)) + "\ntimestamp soon\n\nmsg",
		"bad tree":     "tree nothex\n\nmsg",
	}
	for name, in := range cases {
		if _, err := UnmarshalCommit([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestWireRoundTrip(t *testing.T) {
	var w Writer
	w.WriteUint64(42)
	if err := w.WriteTag("tree"); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}
	if err := w.WritePStr("hello"); err != nil {
		t.Fatalf("WritePStr: %v", err)
	}
	if err := w.WritePStr(""); err != nil {
		t.Fatalf("WritePStr empty: %v", err)
	}

	r := NewReader(w.Bytes())
	n, err := r.ReadUint64()
	if err != nil || n != 42 {
		t.Fatalf("ReadUint64 = %d, %v", n, err)
	}
	tag, err := r.ReadTag()
	if err != nil || tag != "tree" {
		t.Fatalf("ReadTag = %q, %v", tag, err)
	}
	s, err := r.ReadPStr()
	if err != nil || s != "hello" {
		t.Fatalf("ReadPStr = %q, %v", s, err)
	}
	s, err = r.ReadPStr()
	if err != nil || s != "" {
		t.Fatalf("ReadPStr empty = %q, %v", s, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
	if _, err := r.ReadUint64(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("read past end: err = %v, want ErrMalformed", err)
	}
}

func TestWireRejectsBadTag(t *testing.T) {
	var w Writer
	if err := w.WriteTag("toolong"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("WriteTag: err = %v, want ErrMalformed", err)
	}
}
