// Package manifest builds the asset manifest describing the files emitted by a
// build and the loadable outputs of its main entry point.
//
// The manifest is a JSON document with exactly two keys:
//
//	{
//	  "files": {"main.js": "/main.js", "main.js.map": "/main.js.map"},
//	  "entrypoints": ["/main.js"]
//	}
//
// Build is a pure function; the codec in this package keeps "files" in
// insertion order so the encoded output is byte-stable across builds.
package manifest
