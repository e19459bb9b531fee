package domain

// Vec3 is a position in engine space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Quat is an orientation quaternion.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Anchor is a designated spawn point inside an environment scene.
type Anchor struct {
	Name     string `json:"name" yaml:"name"`
	Position Vec3   `json:"position" yaml:"position"`
	Rotation Quat   `json:"rotation" yaml:"rotation"`
}
