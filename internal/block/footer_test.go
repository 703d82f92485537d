package block

import "testing"

func TestFooterRoundtrip(t *testing.T) {
	f := Footer{
		IndexHandle:   Handle{Offset: 4096, Size: 512},
		FilterHandle:  Handle{Offset: 8192, Size: 64},
		OptionsDigest: 0x7a,
	}
	buf := f.EncodeTo()
	if len(buf) != FooterLength {
		t.Fatalf("EncodeTo() length = %d, want %d", len(buf), FooterLength)
	}

	got, err := DecodeFooter(buf)
	if err != nil {
		t.Fatalf("DecodeFooter: %v", err)
	}
	if got != f {
		t.Fatalf("DecodeFooter() = %+v, want %+v", got, f)
	}
}

func TestFooterRoundtripNullHandles(t *testing.T) {
	f := Footer{IndexHandle: Handle{Offset: 100, Size: 50}, FilterHandle: NullHandle, OptionsDigest: 0}
	buf := f.EncodeTo()
	got, err := DecodeFooter(buf)
	if err != nil {
		t.Fatalf("DecodeFooter: %v", err)
	}
	if !got.FilterHandle.IsNull() {
		t.Fatalf("FilterHandle = %+v, want null", got.FilterHandle)
	}
	if got.IndexHandle != f.IndexHandle {
		t.Fatalf("IndexHandle = %+v, want %+v", got.IndexHandle, f.IndexHandle)
	}
}

func TestDecodeFooterBadMagic(t *testing.T) {
	f := Footer{IndexHandle: Handle{Offset: 1, Size: 1}, FilterHandle: Handle{Offset: 2, Size: 2}}
	buf := f.EncodeTo()
	buf[len(buf)-1] ^= 0xff

	if _, err := DecodeFooter(buf); err != ErrBadFooter {
		t.Fatalf("DecodeFooter with corrupted magic: err = %v, want ErrBadFooter", err)
	}
}

func TestDecodeFooterWrongLength(t *testing.T) {
	if _, err := DecodeFooter(make([]byte, FooterLength-1)); err != ErrBadFooter {
		t.Fatalf("DecodeFooter with wrong length: err = %v, want ErrBadFooter", err)
	}
}
