package swath

import (
	"errors"
	"math"
	"testing"
)

func TestResampleIdentityNearest(t *testing.T) {
	src := linearGrid(4, 4, -35, 149, -0.01, 0, 0, 0.01)
	dst := linearGrid(4, 4, -35, 149, -0.01, 0, 0, 0.01)
	data := &Image{Height: 4, Width: 4, Data: []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}}

	out, err := Resample(src, dst, data, ResampleOptions{Method: Nearest, MaxRadius: 5000, Epsilon: DefaultEpsilon})
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if out.Height != 4 || out.Width != 4 {
		t.Fatalf("unexpected shape %dx%d", out.Height, out.Width)
	}
	for i, v := range out.Data {
		if v != data.Data[i] {
			t.Errorf("pixel %d: expected %v, got %v", i, data.Data[i], v)
		}
	}
}

func TestResampleNoNeighborIsNoData(t *testing.T) {
	src := linearGrid(3, 3, 0, 0, 0.01, 0, 0, 0.01)
	dst := linearGrid(2, 2, 10, 10, 0.01, 0, 0, 0.01)
	data := &Image{Height: 3, Width: 3, Data: []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}}

	for _, m := range []Method{Nearest, Gaussian} {
		out, err := Resample(src, dst, data, ResampleOptions{Method: m, MaxRadius: 8000, Epsilon: DefaultEpsilon})
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		for i, v := range out.Data {
			if !math.IsNaN(float64(v)) {
				t.Errorf("%v pixel %d: expected NaN, got %v", m, i, v)
			}
		}
	}
}

func TestResampleSingleNeighborExact(t *testing.T) {
	src := linearGrid(3, 3, 0, 0, 1, 0, 0, 1)
	data := &Image{Height: 3, Width: 3, Data: []float32{9, 9, 9, 9, 0.123456, 9, 9, 9, 9}}
	dst := &GeolocationGrid{Height: 1, Width: 1, Lat: []float64{1.0005}, Lon: []float64{1}}

	for _, m := range []Method{Nearest, Gaussian} {
		out, err := Resample(src, dst, data, ResampleOptions{Method: m, MaxRadius: 1000, Epsilon: DefaultEpsilon})
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		if out.Data[0] != data.Data[4] {
			t.Errorf("%v: expected %v, got %v", m, data.Data[4], out.Data[0])
		}
	}
}

func TestResampleNearestPicksClosest(t *testing.T) {
	src := &GeolocationGrid{Height: 1, Width: 3, Lat: []float64{0, 0, 0}, Lon: []float64{0, 0.01, 0.02}}
	data := &Image{Height: 1, Width: 3, Data: []float32{1, 2, 3}}
	dst := &GeolocationGrid{Height: 1, Width: 2, Lat: []float64{0, 0}, Lon: []float64{0.012, 0.005}}

	out, err := Resample(src, dst, data, ResampleOptions{Method: Nearest, MaxRadius: 5000, Epsilon: DefaultEpsilon})
	if err != nil {
		t.Fatal(err)
	}
	if out.Data[0] != 2 {
		t.Errorf("expected 2, got %v", out.Data[0])
	}
	// equidistant: lowest source index wins
	if out.Data[1] != 1 {
		t.Errorf("expected tie to resolve to 1, got %v", out.Data[1])
	}
}

func TestResampleMissingPolicy(t *testing.T) {
	src := &GeolocationGrid{Height: 1, Width: 4, Lat: []float64{0, 0, 0, 0}, Lon: []float64{0, 1, 2, 3}}
	nan := float32(math.NaN())
	data := &Image{Height: 1, Width: 4, Data: []float32{0, 1e-7, -2, nan}}
	dst := &GeolocationGrid{Height: 1, Width: 4, Lat: []float64{0, 0, 0, 0}, Lon: []float64{0, 1, 2, 3}}

	out, err := Resample(src, dst, data, ResampleOptions{Method: Nearest, MaxRadius: 1000, Epsilon: DefaultEpsilon})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Data {
		if !math.IsNaN(float64(v)) {
			t.Errorf("pixel %d: expected NaN under default epsilon, got %v", i, v)
		}
	}

	out, err = Resample(src, dst, data, ResampleOptions{Method: Nearest, MaxRadius: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if out.Data[0] != 0 || math.IsNaN(float64(out.Data[0])) {
		t.Errorf("expected zero measurement to survive a zero epsilon, got %v", out.Data[0])
	}
	if out.Data[1] != 1e-7 {
		t.Errorf("expected 1e-7, got %v", out.Data[1])
	}
	if !math.IsNaN(float64(out.Data[2])) || !math.IsNaN(float64(out.Data[3])) {
		t.Errorf("expected negative and NaN samples to be no data, got %v", out.Data[2:])
	}
}

func TestResampleSkipsNoDataSources(t *testing.T) {
	src := &GeolocationGrid{Height: 1, Width: 2, Lat: []float64{0, 0}, Lon: []float64{0, 0.001}}
	data := &Image{Height: 1, Width: 2, Data: []float32{float32(math.NaN()), 7}}
	dst := &GeolocationGrid{Height: 1, Width: 1, Lat: []float64{0}, Lon: []float64{0}}

	out, err := Resample(src, dst, data, ResampleOptions{Method: Nearest, MaxRadius: 1000, Epsilon: DefaultEpsilon})
	if err != nil {
		t.Fatal(err)
	}
	if out.Data[0] != 7 {
		t.Errorf("expected the finite neighbour 7, got %v", out.Data[0])
	}
}

func TestGaussianWeightDecreasing(t *testing.T) {
	sigma := 8000.0 / 3
	prev := GaussianWeight(0, sigma)
	if prev != 1 {
		t.Fatalf("expected unit weight at zero distance, got %v", prev)
	}
	for d := 100.0; d <= 8000; d += 100 {
		w := GaussianWeight(d, sigma)
		if !(w < prev) {
			t.Fatalf("weight at %v (%v) not below weight at %v (%v)", d, w, d-100, prev)
		}
		prev = w
	}
}

func TestResampleGaussianFavoursCloserSamples(t *testing.T) {
	src := &GeolocationGrid{Height: 1, Width: 2, Lat: []float64{0, 0}, Lon: []float64{0, 0.02}}
	data := &Image{Height: 1, Width: 2, Data: []float32{10, 20}}
	dst := &GeolocationGrid{Height: 1, Width: 1, Lat: []float64{0}, Lon: []float64{0.005}}

	out, err := Resample(src, dst, data, ResampleOptions{Method: Gaussian, MaxRadius: 8000, Epsilon: DefaultEpsilon})
	if err != nil {
		t.Fatal(err)
	}
	v := out.Data[0]
	if !(v > 10 && v < 15) {
		t.Errorf("expected a weighted mean between 10 and 15, got %v", v)
	}
}

func TestResampleDeterministic(t *testing.T) {
	src := linearGrid(30, 40, -10, 120, -0.003, 0.0007, 0.0005, 0.004)
	data := &Image{Height: 30, Width: 40, Data: make([]float32, 30*40)}
	for i := range data.Data {
		data.Data[i] = float32(1.5 + math.Sin(float64(i)*0.37))
	}
	pts, err := CornerPoints(src)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := BuildTransform(pts)
	if err != nil {
		t.Fatal(err)
	}
	dst := TargetGrid(tr, src.Height, src.Width, OffsetCenter)
	opts := ResampleOptions{Method: Gaussian, MaxRadius: 1500, Epsilon: DefaultEpsilon}

	a, err := Resample(src, dst, data, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Resample(src, dst, data, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if math.Float32bits(a.Data[i]) != math.Float32bits(b.Data[i]) {
			t.Fatalf("pixel %d differs between runs: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestResampleErrors(t *testing.T) {
	grid := linearGrid(2, 2, 0, 0, 1, 0, 0, 1)

	_, err := Resample(&GeolocationGrid{}, grid, &Image{}, ResampleOptions{MaxRadius: 1})
	var ese *EmptySourceError
	if !errors.As(err, &ese) {
		t.Errorf("expected EmptySourceError, got %v", err)
	}

	_, err = Resample(grid, grid, &Image{Height: 3, Width: 3, Data: make([]float32, 9)}, ResampleOptions{MaxRadius: 1})
	var sme *ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Errorf("expected ShapeMismatchError for data, got %v", err)
	}

	bad := &GeolocationGrid{Height: 2, Width: 2, Lat: make([]float64, 4), Lon: make([]float64, 3)}
	_, err = Resample(bad, grid, &Image{Height: 2, Width: 2, Data: make([]float32, 4)}, ResampleOptions{MaxRadius: 1})
	if !errors.As(err, &sme) {
		t.Errorf("expected ShapeMismatchError for longitude, got %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"nearest": Nearest, "gauss": Gaussian, " Gaussian ": Gaussian} {
		m, err := ParseMethod(in)
		if err != nil || m != want {
			t.Errorf("ParseMethod(%q) = %v, %v", in, m, err)
		}
	}
	if _, err := ParseMethod("bilinear"); err == nil {
		t.Error("expected an error for an unknown method")
	}
}
