// Package gallery is a sample plugin class contributing an image gallery tag,
// a caption block tag and asset filters. Register it under any prefix; every
// instance renders its own images.
package gallery
