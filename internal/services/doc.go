// Package services defines shared utilities consumed by the acquisition,
// lookup and favorites components and by the front-ends that call them.
//
// Key responsibilities:
//   - Context helpers that stamp work identifiers, command verbs, and
//     correlation identifiers for logging.
//   - Structured failure markers plus the Wrap helper so every failure that
//     leaves a core operation carries exactly one classifiable kind.
//   - Kind and UserMessage, which front-ends use to render failures without
//     inspecting error strings.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the module.
package services
