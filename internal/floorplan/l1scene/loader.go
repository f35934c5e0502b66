package l1scene

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
	"github.com/banshee-data/floorplan.report/internal/security"
)

// maxManifestSize caps scene manifests at 1MB.
const maxManifestSize = 1 * 1024 * 1024

// LoadXYZ reads a whitespace- or comma-separated point file with one
// "X Y Z [extra...]" record per line, as written by CloudCompare .asc/.xyz
// exports. Blank lines and lines starting with '#' or '//' are skipped.
func LoadXYZ(r io.Reader) (*PointCloud, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	pc := &PointCloud{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", lineNo, len(fields))
		}
		var xyz [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", lineNo, i+1, err)
			}
			xyz[i] = v
		}
		pc.Vertices = append(pc.Vertices, floorplan.Point3D{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	return pc, nil
}

// LoadSTL reads a binary or ASCII STL file into a Mesh. Vertices are not
// welded; every facet contributes three vertices and three indices.
func LoadSTL(r io.Reader) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stl: %w", err)
	}
	if isASCIISTL(data) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

// isASCIISTL distinguishes ASCII from binary STL. Some binary exporters
// start their header with "solid", so the size check is authoritative.
func isASCIISTL(data []byte) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return false
	}
	if len(data) >= 84 {
		n := binary.LittleEndian.Uint32(data[80:84])
		if 84+int64(n)*50 == int64(len(data)) {
			return false
		}
	}
	return bytes.Contains(data, []byte("facet"))
}

func parseBinarySTL(data []byte) (*Mesh, error) {
	if len(data) < 84 {
		return nil, fmt.Errorf("binary stl too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[80:84]))
	if want := 84 + n*50; len(data) < want {
		return nil, fmt.Errorf("binary stl truncated: %d facets need %d bytes, have %d", n, want, len(data))
	}
	m := &Mesh{
		Vertices: make([]floorplan.Point3D, 0, n*3),
		Indices:  make([]uint32, 0, n*3),
	}
	for i := 0; i < n; i++ {
		// 12 bytes normal, 3×12 bytes vertices, 2 bytes attribute count.
		off := 84 + i*50 + 12
		for v := 0; v < 3; v++ {
			base := off + v*12
			m.Indices = append(m.Indices, uint32(len(m.Vertices)))
			m.Vertices = append(m.Vertices, floorplan.Point3D{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[base:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[base+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[base+8:]))),
			})
		}
	}
	return m, nil
}

func parseASCIISTL(data []byte) (*Mesh, error) {
	m := &Mesh{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("stl line %d: malformed vertex", lineNo)
		}
		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", lineNo, err)
			}
			xyz[i] = v
		}
		m.Indices = append(m.Indices, uint32(len(m.Vertices)))
		m.Vertices = append(m.Vertices, floorplan.Point3D{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stl: %w", err)
	}
	if len(m.Vertices)%3 != 0 {
		return nil, fmt.Errorf("stl has %d vertices, not a multiple of 3", len(m.Vertices))
	}
	return m, nil
}

// ManifestNode is the JSON form of one scene node.
type ManifestNode struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"` // "group", "points" or "mesh"
	File     string         `json:"file,omitempty"`
	Matrix   []float64      `json:"matrix,omitempty"` // 16 values, row-major
	Children []ManifestNode `json:"children,omitempty"`
}

// Manifest is the root of a scene description file.
type Manifest struct {
	Nodes []ManifestNode `json:"nodes"`
}

// LoadScene reads a JSON manifest and the asset files it references.
// Asset paths are resolved relative to the manifest and must stay inside
// its directory.
func LoadScene(path string) (*Node, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scene manifest must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scene manifest: %w", err)
	}
	if info.Size() > maxManifestSize {
		return nil, fmt.Errorf("scene manifest too large: %d bytes (max %d)", info.Size(), maxManifestSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene manifest: %w", err)
	}
	var mf Manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse scene manifest: %w", err)
	}

	baseDir := filepath.Dir(cleanPath)
	root := NewGroup(filepath.Base(cleanPath))
	for i := range mf.Nodes {
		child, err := buildNode(&mf.Nodes[i], baseDir)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}
	return root, nil
}

func buildNode(mn *ManifestNode, baseDir string) (*Node, error) {
	transform := Identity
	if len(mn.Matrix) > 0 {
		if len(mn.Matrix) != 16 {
			return nil, fmt.Errorf("node %q: matrix must have 16 values, got %d", mn.Name, len(mn.Matrix))
		}
		copy(transform[:], mn.Matrix)
	}

	n := &Node{Name: mn.Name, Transform: transform}
	switch mn.Type {
	case "", "group":
	case string(KindPointCloud), string(KindMesh):
		g, err := loadGeometry(Kind(mn.Type), mn.File, baseDir)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", mn.Name, err)
		}
		n.Geometry = g
	default:
		return nil, fmt.Errorf("node %q: unknown type %q", mn.Name, mn.Type)
	}

	for i := range mn.Children {
		child, err := buildNode(&mn.Children[i], baseDir)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func loadGeometry(kind Kind, file, baseDir string) (Geometry, error) {
	if file == "" {
		return nil, fmt.Errorf("%s node requires a file", kind)
	}
	p, err := security.SafeJoin(baseDir, file)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	if kind == KindMesh {
		return LoadSTL(f)
	}
	return LoadXYZ(f)
}

// LoadPointFile opens path and reads it with LoadXYZ, or LoadSTL for .stl
// files, wrapping the result in a single-leaf scene.
func LoadPointFile(path string) (*Node, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var g Geometry
	if strings.EqualFold(filepath.Ext(path), ".stl") {
		g, err = LoadSTL(f)
	} else {
		g, err = LoadXYZ(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewLeaf(filepath.Base(path), Identity, g), nil
}
