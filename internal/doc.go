// Package internal contains the core implementation packages for glossa.
//
// # Package Organization
//
// The internal packages are organized by pipeline stage:
//
//   - resolver: URI schemes and the tiered handler registry
//   - include: Include expansion with cycle and depth limits
//   - deps: Dependency tracking for generated outputs
//   - dictionary: Dictionary sources and fallback-chain merging
//   - translate: Template-driven localization with node and text handlers
//   - orchestrator: Regeneration policy, output store and batch localization
//   - cache: Result cache validated against dependency modification times
//   - watcher: File system monitoring with debouncing
//   - config, errors, logging, document, version: Shared infrastructure
//
// # Inter-Package Communication
//
//   - The orchestrator owns one include processor, translation engine and
//     dictionary cache, and hands each request its own resolver
//   - Every stage reports the files it read to a deps tracker; the union is
//     recorded next to the output and in the result cache
//   - The watcher turns file events into cache invalidations through the
//     dependency index
package internal
