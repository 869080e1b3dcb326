// Package components defines ECS components for the scene.
package components

// Position represents an entity's world position.
type Position struct {
	X, Y, Z float32
}

// SamplePoint tags a marker entity with the sample it was loaded from.
type SamplePoint struct {
	Index    int        `inspect:"label"`
	Line     int        `inspect:"label,name:Source line"` // in the .mod1 file
	Original [3]float64 `inspect:"vec,fmt:%g,name:File coords"`
}

// Marker holds drawing state for a sample marker.
type Marker struct {
	Size        float32
	Highlighted bool
}
