package granule

import (
	"errors"
	"testing"
	"time"
)

func TestParseFileName(t *testing.T) {
	md, err := ParseFileName("/data/pacepax/PACEPAX-AH2MAP-L1C_ER2_20240910T175007_RA.nc")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expected := Metadata{
		Campaign:   "PACEPAX",
		Instrument: "AH2MAP",
		Level:      "L1C",
		Platform:   "ER2",
		Suffix:     "RA",
		Time:       time.Date(2024, 9, 10, 17, 50, 7, 0, time.UTC),
		FileName:   "PACEPAX-AH2MAP-L1C_ER2_20240910T175007_RA.nc",
	}
	if md != expected {
		t.Errorf("expected %+v, got %+v", expected, md)
	}
	if md.Date() != "2024-09-10_17:50:07" {
		t.Errorf("unexpected date %q", md.Date())
	}
	if md.Stem() != "PACEPAX-AH2MAP-L1C_ER2_20240910T175007_RA" {
		t.Errorf("unexpected stem %q", md.Stem())
	}
}

func TestParseFileNameRejects(t *testing.T) {
	names := []string{
		"randomfile.nc",
		"PACEPAX_ER2_20240910T175007_RA.nc",
		"PACEPAX-AH2MAP-L1C_ER2_20241310T175007_RA.nc",
		"PACEPAX--L1C_ER2_20240910T175007_RA.nc",
		"PACEPAX-AH2MAP-L1C_ER2_2024091T175007_RA.nc",
	}
	for _, name := range names {
		md, err := ParseFileName(name)
		var ufe *UnrecognizedFilenameError
		if !errors.As(err, &ufe) {
			t.Errorf("%s: expected UnrecognizedFilenameError, got %v", name, err)
		}
		if md != (Metadata{}) {
			t.Errorf("%s: expected no metadata, got %+v", name, md)
		}
	}
}

func TestKeySchemas(t *testing.T) {
	md, err := ParseFileName("PACE-HARP2-L1C_SAT_20240301T000102_X.nc")
	if err != nil {
		t.Fatal(err)
	}

	k := md.Key(SchemaChannel, "red")
	if k.String() != "PACE/HARP2/2024-03-01_00:01:02/L1C/red" {
		t.Errorf("unexpected channel key %s", k)
	}
	k = md.Key(SchemaGranule, "red")
	if k.Channel != "" || len(k.Fields()) != 4 {
		t.Errorf("unexpected granule key %+v", k)
	}

	if s, err := ParseSchema(""); err != nil || s != SchemaChannel {
		t.Errorf("expected default schema, got %v %v", s, err)
	}
	if _, err := ParseSchema("tile"); err == nil {
		t.Error("expected unknown schema to fail")
	}
}

func TestNewDateRange(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, 9, d, h, 0, 0, 0, time.UTC) }

	r, ok := NewDateRange([]time.Time{day(12, 3), day(8, 17), day(10, 1), day(12, 9)})
	if !ok {
		t.Fatal("expected a range")
	}
	if !r.Min.Equal(day(8, 17)) || !r.Max.Equal(day(12, 9)) {
		t.Errorf("unexpected bounds %v - %v", r.Min, r.Max)
	}
	want := []time.Time{day(9, 0), day(11, 0)}
	if len(r.Unavailable) != len(want) {
		t.Fatalf("expected %v, got %v", want, r.Unavailable)
	}
	for i := range want {
		if !r.Unavailable[i].Equal(want[i]) {
			t.Errorf("expected %v, got %v", want[i], r.Unavailable[i])
		}
	}

	if _, ok := NewDateRange(nil); ok {
		t.Error("expected no range for no dates")
	}
}
