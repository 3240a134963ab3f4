package tiles

import (
	"math"
	"net/url"
	"path"
	"strings"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidTileset = "invalid_tileset"

	wgs84Radius = 6378137.0
)

type tilesetJSON struct {
	Asset struct {
		Version    string `json:"version"`
		GltfUpAxis string `json:"gltfUpAxis"`
	} `json:"asset"`
	GeometricError float64   `json:"geometricError"`
	Root           *tileJSON `json:"root"`
}

type tileJSON struct {
	BoundingVolume boundingVolumeJSON `json:"boundingVolume"`
	GeometricError float64            `json:"geometricError"`
	Refine         string             `json:"refine"`
	Transform      []float64          `json:"transform"`
	Content        *contentJSON       `json:"content"`
	Children       []*tileJSON        `json:"children"`
}

type contentJSON struct {
	URI string `json:"uri"`

	// Pre 1.0 tilesets use url instead of uri.
	URL string `json:"url"`
}

type boundingVolumeJSON struct {
	Box    []float64 `json:"box"`
	Sphere []float64 `json:"sphere"`
	Region []float64 `json:"region"`
}

// ParseTileset decodes a tileset document into a detached tile hierarchy.
// Content uris are resolved against baseURI. The returned root must be
// registered in a tree, either with NewTree or Tree.Splice.
func ParseTileset(data []byte, baseURI string) (*Tile, error) {
	var ts tilesetJSON
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, errors.New("decoding tileset failed").
			WithType(ErrTypeInvalidTileset).
			WithTag("uri", baseURI).
			Wrap(err)
	}

	if ts.Root == nil {
		return nil, errors.New("tileset has no root").
			WithType(ErrTypeInvalidTileset).
			WithTag("uri", baseURI)
	}

	type item struct {
		json   *tileJSON
		parent *Tile
		offset math32.Vector3
	}

	var root *Tile
	stack := []item{{json: ts.Root}}

	for len(stack) != 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		tj := it.json

		if tj.GeometricError < 0 || math.IsNaN(tj.GeometricError) {
			return nil, errors.New("negative geometric error").
				WithType(ErrTypeInvalidTileset).
				WithTag("uri", baseURI).
				WithTag("geometric_error", tj.GeometricError)
		}

		tile := &Tile{
			GeometricError: tj.GeometricError,
			ContentEmpty:   true,
		}

		if it.parent != nil {
			tile.Refine = it.parent.Refine
			tile.Bounds = it.parent.Bounds
		}
		if refine, ok := ParseRefinement(tj.Refine); ok {
			tile.Refine = refine
		}

		offset := it.offset
		if len(tj.Transform) == 16 {
			offset = offset.Add(math32.Vec3(
				float32(tj.Transform[12]),
				float32(tj.Transform[13]),
				float32(tj.Transform[14]),
			))
		}

		if bv, ok := parseBoundingVolume(tj.BoundingVolume, offset); ok {
			tile.Bounds = bv
		}

		if tj.Content != nil {
			uri := tj.Content.URI
			if uri == "" {
				uri = tj.Content.URL
			}

			if uri != "" {
				tile.ContentURI = ResolveURI(baseURI, uri)
				tile.External = isExternalURI(uri)
				tile.ContentEmpty = tile.External
			}
		}

		if it.parent == nil {
			root = tile
		} else {
			it.parent.AddChild(tile)
		}

		for i := len(tj.Children) - 1; i >= 0; i-- {
			if tj.Children[i] == nil {
				continue
			}
			stack = append(stack, item{
				json:   tj.Children[i],
				parent: tile,
				offset: offset,
			})
		}
	}

	// Children were pushed in reverse so that they pop in document order, and
	// AddChild appends, which keeps the document order.
	return root, nil
}

func parseBoundingVolume(bv boundingVolumeJSON, offset math32.Vector3) (BoundingVolume, bool) {
	switch {
	case len(bv.Sphere) == 4:
		center := math32.Vec3(float32(bv.Sphere[0]), float32(bv.Sphere[1]), float32(bv.Sphere[2])).Add(offset)
		return BoundingVolume{
			Sphere: math32.Sphere{Center: center, Radius: float32(bv.Sphere[3])},
		}, true

	case len(bv.Box) == 12:
		center := math32.Vec3(float32(bv.Box[0]), float32(bv.Box[1]), float32(bv.Box[2])).Add(offset)
		x := math32.Vec3(float32(bv.Box[3]), float32(bv.Box[4]), float32(bv.Box[5]))
		y := math32.Vec3(float32(bv.Box[6]), float32(bv.Box[7]), float32(bv.Box[8]))
		z := math32.Vec3(float32(bv.Box[9]), float32(bv.Box[10]), float32(bv.Box[11]))

		half := math32.Vec3(
			math32.Abs(x.X)+math32.Abs(y.X)+math32.Abs(z.X),
			math32.Abs(x.Y)+math32.Abs(y.Y)+math32.Abs(z.Y),
			math32.Abs(x.Z)+math32.Abs(y.Z)+math32.Abs(z.Z),
		)
		radius := float32(math.Sqrt(float64(x.Dot(x) + y.Dot(y) + z.Dot(z))))

		return BoundingVolume{
			Sphere: math32.Sphere{Center: center, Radius: radius},
			Box:    math32.Box3{Min: center.Sub(half), Max: center.Add(half)},
			HasBox: true,
		}, true

	case len(bv.Region) == 6:
		return regionVolume(bv.Region), true

	default:
		return BoundingVolume{}, false
	}
}

// regionVolume approximates a geodetic region with the box enclosing its
// corners on a spherical earth.
func regionVolume(region []float64) BoundingVolume {
	west, south, east, north := region[0], region[1], region[2], region[3]
	minHeight, maxHeight := region[4], region[5]

	box := math32.B3Empty()
	for _, lon := range []float64{west, (west + east) / 2, east} {
		for _, lat := range []float64{south, (south + north) / 2, north} {
			for _, h := range []float64{minHeight, maxHeight} {
				r := wgs84Radius + h
				box.ExpandByPoint(math32.Vec3(
					float32(r*math.Cos(lat)*math.Cos(lon)),
					float32(r*math.Cos(lat)*math.Sin(lon)),
					float32(r*math.Sin(lat)),
				))
			}
		}
	}

	return BoundingVolume{
		Sphere: box.GetBoundingSphere(),
		Box:    box,
		HasBox: true,
	}
}

// ResolveURI resolves a content uri against the uri of the tileset that
// references it. Both urls and file paths are supported.
func ResolveURI(base, ref string) string {
	if ref == "" {
		return base
	}

	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}

	if b, err := url.Parse(base); err == nil && b.Scheme != "" && b.Host != "" {
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}

	if strings.HasPrefix(ref, "/") {
		return ref
	}
	return path.Join(path.Dir(base), ref)
}
