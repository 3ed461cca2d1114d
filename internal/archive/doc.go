// Package archive packs successful artifacts into a single flat zip.
//
//	successes := archive.Arrange(result.Successes, archive.OrderInput)
//	data, err := archive.Assemble(successes)
//	var aerr *archive.AssemblyError
//	if errors.As(err, &aerr) {
//	    // nothing succeeded, or an artifact vanished
//	}
//
// Entries sit at the archive root and are named after the artifact's base
// name. Duplicate names get a " (2)" style suffix.
package archive
