// Package cmd provides the command-line interface for glossa.
//
// This package implements the CLI commands using the Cobra framework on top
// of the orchestrator, which assembles, localizes and stores content
// documents.
//
// # Available Commands
//
//   - resolve: Assemble a resource with every include expanded
//   - localize: Generate localized outputs for one or more locales
//   - dict: Inspect the merged dictionaries of a content group
//   - config: Show or validate the resolved configuration
//   - watch: Regenerate outputs when their sources change
//   - version: Print build information
//
// # Command Examples
//
//	// Print the assembled document
//	glossa resolve site/index.xml
//
//	// Localize for every locale of the resource's group
//	glossa localize site/index.xml --all
//
//	// Annotated output showing where every phrase came from
//	glossa localize site/index.xml --locale es-LA --diagnose
//
//	// Phrases still served from a fallback locale
//	glossa dict site --locale es --untranslated
//
//	// Keep outputs current while editing
//	glossa watch site/index.xml docs/guide.xml
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (GLOSSA_*)
//  3. Configuration file (.glossa.yml)
//  4. Default values (lowest priority)
//
// Relative paths in a configuration file are relative to the file.
//
// # Error Handling
//
// Failures scoped to one locale do not stop a batch. The command prints
// what succeeded and exits non-zero with every failure listed.
package cmd
