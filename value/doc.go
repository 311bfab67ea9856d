// Package value defines the dynamic, JSON-compatible value type that
// flows through aimq pipelines.
//
// A job payload is an open mapping: pipelines accept and return
// mappings, and leaf transforms may legitimately produce scalars that
// get lifted into a mapping under an assigning field name. Modeled as
// a static Go type, this becomes the tagged union Value, analogous to
// what a JSON decoder would hand back into interface{}. Numbers are
// held as float64, so integers beyond 2^53 lose precision.
//
// Object is the only variant select and assign operate on; any other
// top-level kind passed to one of them is a type_mismatch PipelineError.
package value
