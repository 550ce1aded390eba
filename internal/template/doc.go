// Package template loads job templates and exposes the typed operations the
// worker applies before submission: writing uploaded filenames into image
// slots, writing the prompt text, re-rolling sampler seeds, and locating the
// node whose output is delivered.
package template
