// Layer package assembly for advanced jobs: background, subject cutout,
// anvil overlay and final composite as separate PNGs plus a metadata record,
// all at identical pixel dimensions so external editors can stack them
// without resampling. Pure assembly - no pixel algorithms beyond what the
// compositor already produced.
package layerpkg

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/slurpey/anvilizer/internal/compositor"
	"github.com/slurpey/anvilizer/internal/entity"
)

const (
	LayerBackground = "01_background.png"
	LayerSubject    = "02_subject_cutout.png"
	LayerOverlay    = "03_anvil_shape.png"
	LayerComposite  = "final_composite.png"
	LayerInfo       = "layer_info.json"
	LayerReadme     = "README.txt"
)

// BuildPackage assembles the layer package. subject may be nil for styles
// without a cutout; the subject layer is then omitted.
func BuildPackage(background *image.NRGBA, subject *image.Alpha, overlay, composite *image.NRGBA, meta entity.LayerMetadata) (*entity.LayerPackage, error) {
	size := background.Rect.Size()
	for name, img := range map[string]*image.NRGBA{"overlay": overlay, "composite": composite} {
		if img.Rect.Size() != size {
			return nil, fmt.Errorf("layer %s is %v, background is %v", name, img.Rect.Size(), size)
		}
	}
	if subject != nil && subject.Rect.Size() != size {
		return nil, fmt.Errorf("subject mask is %v, background is %v", subject.Rect.Size(), size)
	}

	pkg := &entity.LayerPackage{Metadata: meta}

	bg, err := encodePNG(background)
	if err != nil {
		return nil, err
	}
	pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerBackground, Data: bg})

	if subject != nil && meta.HasSubject {
		cutout := compositor.Cutout(background, subject)
		data, err := encodePNG(cutout)
		if err != nil {
			return nil, err
		}
		pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerSubject, Data: data})
	}

	ov, err := encodePNG(overlay)
	if err != nil {
		return nil, err
	}
	pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerOverlay, Data: ov})

	comp, err := encodePNG(composite)
	if err != nil {
		return nil, err
	}
	pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerComposite, Data: comp})

	info, err := json.MarshalIndent(packageInfo(meta), "", "  ")
	if err != nil {
		return nil, err
	}
	pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerInfo, Data: info})
	pkg.Layers = append(pkg.Layers, entity.LayerFile{Name: LayerReadme, Data: []byte(readme(meta))})

	return pkg, nil
}

// ZipBytes serializes the package as a zip archive.
func ZipBytes(pkg *entity.LayerPackage) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, layer := range pkg.Layers {
		w, err := zw.Create(layer.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(layer.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type layerDesc struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Description string `json:"description"`
}

func packageInfo(meta entity.LayerMetadata) map[string]any {
	layers := []layerDesc{
		{Name: "Background", File: LayerBackground, Description: "Original cropped image at full resolution"},
	}
	if meta.HasSubject {
		layers = append(layers, layerDesc{
			Name: "Subject Cutout", File: LayerSubject,
			Description: "Extracted person/object with transparency",
		})
	}
	layers = append(layers, layerDesc{
		Name: "Anvil Shape", File: LayerOverlay,
		Description: fmt.Sprintf("Anvil overlay in %s", meta.ColorHex),
	})

	return map[string]any{
		"anvilizer_export": map[string]any{
			"version":        "1.0",
			"style":          meta.Style,
			"color":          map[string]string{"name": meta.ColorName, "hex": meta.ColorHex},
			"original_file":  meta.BaseName,
			"resolution":     meta.Resolution,
			"spec":           meta.Spec,
			"created_at":     meta.CreatedAt,
			"layers":         layers,
			"composite_file": LayerComposite,
			"instructions":   "Import these layers into any layer-capable editor. Each PNG keeps transparency where appropriate.",
		},
	}
}

func readme(meta entity.LayerMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ANVILIZER LAYER PACKAGE\n=======================\n\n")
	fmt.Fprintf(&b, "Style: %s\nColor: %s\nOriginal File: %s\nResolution: %s\n\n", meta.Style, meta.ColorHex, meta.BaseName, meta.Resolution)
	b.WriteString("Layers, bottom to top:\n")
	fmt.Fprintf(&b, "  %s\n", LayerBackground)
	if meta.HasSubject {
		fmt.Fprintf(&b, "  %s\n", LayerSubject)
	}
	fmt.Fprintf(&b, "  %s\n\n", LayerOverlay)
	fmt.Fprintf(&b, "%s is the flattened result; %s holds technical metadata.\n", LayerComposite, LayerInfo)
	b.WriteString("All PNGs share identical pixel dimensions and can be stacked without resampling.\n")
	return b.String()
}
