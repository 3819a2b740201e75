package builder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/spherert/rt/core"

	"gopkg.in/yaml.v3"
)

// Description is a scene written out by hand, usually as YAML:
//
//	viewport: {width: 640, height: 480}
//	materials:
//	  - name: red
//	    diffuse: [0.8, 0.1, 0.1]
//	    shininess: 64
//	spheres:
//	  - {center: [0, 10, 0], radius: 10, material: red}
type Description struct {
	Viewport  ViewportDef   `yaml:"viewport"`
	Camera    CameraDef     `yaml:"camera,omitempty"`
	Materials []MaterialDef `yaml:"materials"`
	Lights    []LightDef    `yaml:"lights,omitempty"`
	Planes    []PlaneDef    `yaml:"planes,omitempty"`
	Spheres   []SphereDef   `yaml:"spheres,omitempty"`
}

type ViewportDef struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

type CameraDef struct {
	Position [3]float32 `yaml:"position"`
	Yaw      float32    `yaml:"yaw"`
	Pitch    float32    `yaml:"pitch"`
	Fov      float32    `yaml:"fov"`
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
}

type MaterialDef struct {
	Name         string     `yaml:"name"`
	Ambient      [3]float32 `yaml:"ambient,omitempty"`
	Diffuse      [3]float32 `yaml:"diffuse,omitempty"`
	Specular     [3]float32 `yaml:"specular,omitempty"`
	Shininess    float32    `yaml:"shininess"`
	Reflectivity float32    `yaml:"reflectivity,omitempty"`
	Refractivity float32    `yaml:"refractivity,omitempty"`
}

// LightDef positions a light. W is stored as the fourth center component.
type LightDef struct {
	Position [3]float32 `yaml:"position"`
	W        float32    `yaml:"w,omitempty"`
	Ambient  [3]float32 `yaml:"ambient,omitempty"`
	Diffuse  [3]float32 `yaml:"diffuse,omitempty"`
	Specular [3]float32 `yaml:"specular,omitempty"`
}

type PlaneDef struct {
	Point    [3]float32 `yaml:"point"`
	Normal   [3]float32 `yaml:"normal"`
	Material string     `yaml:"material"`
}

type SphereDef struct {
	Center   [3]float32 `yaml:"center"`
	Radius   float32    `yaml:"radius"`
	Material string     `yaml:"material"`
}

var ErrDuplicateMaterial = errors.New("duplicate material name")

func cameraDef(c core.Camera) CameraDef {
	return CameraDef{
		Position: [3]float32(c.Position),
		Yaw:      c.Yaw,
		Pitch:    c.Pitch,
		Fov:      c.FovY,
		Near:     c.Near,
		Far:      c.Far,
	}
}

func (c CameraDef) camera() core.Camera {
	return core.Camera{
		Position: core.Vec3f(c.Position),
		Yaw:      c.Yaw,
		Pitch:    c.Pitch,
		FovY:     c.Fov,
		Near:     c.Near,
		Far:      c.Far,
	}
}

// ParseDescription decodes YAML. Unknown keys are errors. Camera fields that
// are left out keep their core.DefaultCamera values.
func ParseDescription(data []byte) (Description, error) {
	d := Description{Camera: cameraDef(core.DefaultCamera())}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return Description{}, fmt.Errorf("builder: parse description: %w", err)
	}
	return d, nil
}

func LoadDescription(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("builder: read description: %w", err)
	}
	return ParseDescription(data)
}

// BuildFromDescription builds and finalizes the scene d describes. Planes and
// spheres name their material; every name must be declared in Materials.
func BuildFromDescription(d Description) (*core.Scene, error) {
	s, err := core.NewScene(core.Viewport{Width: d.Viewport.Width, Height: d.Viewport.Height}, d.Camera.camera())
	if err != nil {
		return nil, err
	}

	handles := make(map[string]core.MaterialHandle, len(d.Materials))
	for i, md := range d.Materials {
		if _, dup := handles[md.Name]; dup {
			return nil, fmt.Errorf("builder: material %d %q: %w", i, md.Name, ErrDuplicateMaterial)
		}
		m, err := core.NewMaterial(core.Vec3f(md.Ambient), core.Vec3f(md.Diffuse), core.Vec3f(md.Specular),
			md.Shininess, md.Reflectivity, md.Refractivity)
		if err != nil {
			return nil, fmt.Errorf("builder: material %q: %w", md.Name, err)
		}
		h, err := s.AddMaterial(m)
		if err != nil {
			return nil, err
		}
		handles[md.Name] = h
	}

	lookup := func(kind string, i int, name string) (core.MaterialHandle, error) {
		h, ok := handles[name]
		if !ok {
			return core.MaterialHandle{}, fmt.Errorf("builder: %s %d uses material %q: %w", kind, i, name, ErrUnknownMaterial)
		}
		return h, nil
	}

	for i, ld := range d.Lights {
		l, err := core.NewLight(core.Vec3f(ld.Position).Vec4(ld.W), core.Vec3f(ld.Ambient), core.Vec3f(ld.Diffuse), core.Vec3f(ld.Specular))
		if err != nil {
			return nil, fmt.Errorf("builder: light %d: %w", i, err)
		}
		if _, err := s.AddLight(l); err != nil {
			return nil, err
		}
	}

	for i, pd := range d.Planes {
		h, err := lookup("plane", i, pd.Material)
		if err != nil {
			return nil, err
		}
		if _, err := s.AddPlane(core.Vec3f(pd.Point), core.Vec3f(pd.Normal), h); err != nil {
			return nil, fmt.Errorf("builder: plane %d: %w", i, err)
		}
	}

	for i, sd := range d.Spheres {
		h, err := lookup("sphere", i, sd.Material)
		if err != nil {
			return nil, err
		}
		if _, err := s.AddSphere(core.Vec3f(sd.Center), sd.Radius, h); err != nil {
			return nil, fmt.Errorf("builder: sphere %d: %w", i, err)
		}
	}

	if err := s.Finalize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Describe is the inverse of BuildFromDescription. Materials are named m0,
// m1 and so on.
func Describe(s *core.Scene) Description {
	vp := s.Viewport()
	d := Description{
		Viewport: ViewportDef{Width: vp.Width, Height: vp.Height},
		Camera:   cameraDef(s.Camera()),
	}
	name := func(idx core.MaterialIndex) string { return fmt.Sprintf("m%d", idx) }

	for i, m := range s.Materials() {
		d.Materials = append(d.Materials, MaterialDef{
			Name:         name(core.MaterialIndex(i)),
			Ambient:      [3]float32(m.Ambient()),
			Diffuse:      [3]float32(m.Diffuse()),
			Specular:     [3]float32(m.Specular()),
			Shininess:    m.Shininess(),
			Reflectivity: m.Reflectivity(),
			Refractivity: m.Refractivity(),
		})
	}
	for _, l := range s.Lights() {
		c := l.Center()
		d.Lights = append(d.Lights, LightDef{
			Position: [3]float32{c[0], c[1], c[2]},
			W:        c[3],
			Ambient:  [3]float32(l.Ambient()),
			Diffuse:  [3]float32(l.Diffuse()),
			Specular: [3]float32(l.Specular()),
		})
	}
	for _, p := range s.Planes() {
		d.Planes = append(d.Planes, PlaneDef{
			Point:    [3]float32(p.Point()),
			Normal:   [3]float32(p.Normal()),
			Material: name(p.Material()),
		})
	}
	for _, sp := range s.Spheres() {
		d.Spheres = append(d.Spheres, SphereDef{
			Center:   [3]float32(sp.Center()),
			Radius:   sp.Radius(),
			Material: name(sp.Material()),
		})
	}
	return d
}

// WithCamera returns a copy of d viewed from c.
func (d Description) WithCamera(c core.Camera) Description {
	d.Camera = cameraDef(c)
	return d
}

// Marshal writes d as YAML.
func (d Description) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
