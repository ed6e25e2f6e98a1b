package stageexec

import (
	"maps"
	"reflect"

	"mediaflow/internal/operator"
)

// Collision records an output key that replaced an existing globals entry.
type Collision struct {
	Section   string
	Key       string
	Operation string
}

// MergeGlobals unions operation outputs into globals in operation order.
// A later writer replaces an earlier value; each replacement of a different
// value is reported as a collision.
func MergeGlobals(globals operator.Globals, outputs []operator.OutputObject) (operator.Globals, []Collision) {
	merged := globals.Clone()
	var collisions []Collision
	for _, out := range outputs {
		for mediaType, obj := range out.Media {
			if prev, ok := merged.Media[mediaType]; ok && prev != obj {
				collisions = append(collisions, Collision{Section: "Media", Key: mediaType, Operation: out.Name})
			}
			merged.Media[mediaType] = obj
		}
		for key, value := range out.MetaData {
			if prev, ok := merged.MetaData[key]; ok && !reflect.DeepEqual(prev, value) {
				collisions = append(collisions, Collision{Section: "MetaData", Key: key, Operation: out.Name})
			}
			merged.MetaData[key] = value
		}
	}
	return merged, collisions
}

func mergeMetadata(globals operator.Globals, metadata map[string]any) operator.Globals {
	merged := globals.Clone()
	maps.Copy(merged.MetaData, metadata)
	return merged
}
