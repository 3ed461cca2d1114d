// Command audiobatch downloads audio from many links and packs the results
// into a single zip archive.
//
// Usage:
//
//	audiobatch get [links...] [-f links.txt] [-o dir]
//	audiobatch resolve [links...]
//	audiobatch tui
//	audiobatch serve [--addr :8080]
//	audiobatch history list|show <id>
//	audiobatch config show|init
package main
