/*
Package domain contains the core domain models of the diagramflow studio.

It defines the session aggregate driven by the state machine, the validation and
render results flowing through the pipeline, and the records written by the
persistence gateway. The package stays pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Session: the single snapshot of application status and document data.
  - Status / Flags: the lifecycle state and the capabilities derived from it.
  - ValidationResult: the outcome of checking a document against structural rules.
  - Artifact: the rendered markup for a document snapshot, tagged with a request id.
  - Record: a saved document, as written by the persistence gateway.
*/
package domain
