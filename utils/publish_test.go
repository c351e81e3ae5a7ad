package utils

import "testing"

func TestS3ObjectKey(t *testing.T) {
	cases := []struct {
		prefix, rel, want string
	}{
		{"", "g/red-channel.tif", "g/red-channel.tif"},
		{"pacepax/l1c", "g/red-channel.tif", "pacepax/l1c/g/red-channel.tif"},
		{"/rasters/", "g/rgb.vrt", "rasters/g/rgb.vrt"},
	}
	for _, c := range cases {
		p := &S3Publisher{Bucket: "b", Prefix: c.prefix}
		if got := p.ObjectKey(c.rel); got != c.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", c.prefix, c.rel, got, c.want)
		}
	}
}
