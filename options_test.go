package plfsdir

import "testing"

func TestDefaultDirOptionsMatchesDocumentedDefaults(t *testing.T) {
	o := DefaultDirOptions()

	if o.TotalMemtableBudget != 4<<20 {
		t.Errorf("TotalMemtableBudget = %d, want %d", o.TotalMemtableBudget, 4<<20)
	}
	if o.MemtableUtil != 1.0 {
		t.Errorf("MemtableUtil = %v, want 1.0", o.MemtableUtil)
	}
	if o.KeySize != 8 || o.ValueSize != 32 {
		t.Errorf("KeySize/ValueSize = %d/%d, want 8/32", o.KeySize, o.ValueSize)
	}
	if o.BfBitsPerKey != 8 {
		t.Errorf("BfBitsPerKey = %d, want 8", o.BfBitsPerKey)
	}
	if o.BlockSize != 32<<10 {
		t.Errorf("BlockSize = %d, want %d", o.BlockSize, 32<<10)
	}
	if o.BlockUtil != 0.996 {
		t.Errorf("BlockUtil = %v, want 0.996", o.BlockUtil)
	}
	if !o.BlockPadding {
		t.Error("BlockPadding = false, want true")
	}
	if o.LgParts != 0 {
		t.Errorf("LgParts = %d, want 0", o.LgParts)
	}
	if o.Mode != Unique {
		t.Errorf("Mode = %v, want Unique", o.Mode)
	}
	if !o.IsEnvPfs {
		t.Error("IsEnvPfs = false, want true")
	}
	if o.AllowEnvThreads {
		t.Error("AllowEnvThreads = true, want false")
	}
	if !o.MeasureReads || !o.MeasureWrites {
		t.Error("MeasureReads/MeasureWrites should default true")
	}
}

func TestDirOptionsPartitions(t *testing.T) {
	o := DefaultDirOptions()
	o.LgParts = 3
	if got := o.Partitions(); got != 8 {
		t.Errorf("Partitions() = %d, want 8", got)
	}
}

func TestSanitizeFillsZeroValues(t *testing.T) {
	var o DirOptions
	s := o.Sanitize()
	if s.TotalMemtableBudget != 4<<20 {
		t.Errorf("TotalMemtableBudget = %d, want default", s.TotalMemtableBudget)
	}
	if s.Env == nil {
		t.Error("Env should default to vfs.Default()")
	}
	if s.Logger == nil {
		t.Error("Logger should default to logging.Discard")
	}
}

func TestSanitizeClampsLgParts(t *testing.T) {
	o := DirOptions{LgParts: 99}
	s := o.Sanitize()
	if s.LgParts != 8 {
		t.Errorf("LgParts = %d, want clamped to 8", s.LgParts)
	}

	o2 := DirOptions{LgParts: -5}
	s2 := o2.Sanitize()
	if s2.LgParts != 0 {
		t.Errorf("LgParts = %d, want clamped to 0", s2.LgParts)
	}
}

func TestParseDirOptionsEmpty(t *testing.T) {
	o, err := ParseDirOptions("")
	if err != nil {
		t.Fatalf("ParseDirOptions(\"\") error: %v", err)
	}
	if o.LgParts != 0 || o.Mode != Unique {
		t.Error("empty config should yield defaults")
	}
}

func TestParseDirOptionsOverrides(t *testing.T) {
	o, err := ParseDirOptions("lg_parts=3; bf_bits_per_key=10 ;compression=snappy;mode=multimap;paranoid_checks=true")
	if err != nil {
		t.Fatalf("ParseDirOptions error: %v", err)
	}
	if o.LgParts != 3 {
		t.Errorf("LgParts = %d, want 3", o.LgParts)
	}
	if o.BfBitsPerKey != 10 {
		t.Errorf("BfBitsPerKey = %d, want 10", o.BfBitsPerKey)
	}
	if o.Compression != SnappyCompression {
		t.Errorf("Compression = %v, want SnappyCompression", o.Compression)
	}
	if o.Mode != MultiMap {
		t.Errorf("Mode = %v, want MultiMap", o.Mode)
	}
	if !o.ParanoidChecks {
		t.Error("ParanoidChecks should be true")
	}
}

func TestParseDirOptionsRejectsBadLgParts(t *testing.T) {
	if _, err := ParseDirOptions("lg_parts=9"); err == nil {
		t.Error("expected error for lg_parts out of range")
	}
}

func TestParseDirOptionsRejectsUnrecognizedKey(t *testing.T) {
	if _, err := ParseDirOptions("not_a_real_option=1"); err == nil {
		t.Error("expected error for unrecognized option")
	}
}

func TestParseDirOptionsRejectsMalformedField(t *testing.T) {
	if _, err := ParseDirOptions("lg_parts"); err == nil {
		t.Error("expected error for field missing '='")
	}
}
