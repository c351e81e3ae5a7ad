package utils

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edisonguo/jet"
)

// RGBTemplate is the template file rendered for RGB composites.
const RGBTemplate = "rgb.vrt"

type VRTBand struct {
	Index       int
	File        string
	ColorInterp string
}

// RGBComposite describes a three band VRT over per-channel GeoTIFFs that
// share one grid.
type RGBComposite struct {
	Width        int
	Height       int
	CRS          string
	GeoTransform string
	Bands        []VRTBand
}

// NewRGBComposite references red, green and blue relative to the VRT.
func NewRGBComposite(width, height int, geot [6]float64, crs, red, green, blue string) *RGBComposite {
	gt := make([]string, len(geot))
	for i, v := range geot {
		gt[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return &RGBComposite{
		Width:        width,
		Height:       height,
		CRS:          crs,
		GeoTransform: strings.Join(gt, ", "),
		Bands: []VRTBand{
			{Index: 1, File: filepath.Base(red), ColorInterp: "Red"},
			{Index: 2, File: filepath.Base(green), ColorInterp: "Green"},
			{Index: 3, File: filepath.Base(blue), ColorInterp: "Blue"},
		},
	}
}

// VRTRenderer renders VRT documents from jet templates.
type VRTRenderer struct {
	view *jet.Set
}

func NewVRTRenderer(templateDir string) *VRTRenderer {
	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), templateDir)
	return &VRTRenderer{view: view}
}

func (r *VRTRenderer) Render(name string, data interface{}) ([]byte, error) {
	template, err := r.view.GetTemplate(name)
	if err != nil {
		return nil, fmt.Errorf("VRT template error: %v", err)
	}
	var resBuf bytes.Buffer
	vars := make(jet.VarMap)
	if err = template.Execute(&resBuf, vars, data); err != nil {
		return nil, fmt.Errorf("VRT render error: %v", err)
	}
	return resBuf.Bytes(), nil
}

// WriteRGB renders comp next to its band files.
func (r *VRTRenderer) WriteRGB(path string, comp *RGBComposite) error {
	out, err := r.Render(RGBTemplate, comp)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, out, 0644)
}
