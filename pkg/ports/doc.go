/*
Package ports defines the driven ports (interfaces) for the diagramflow studio.

These interfaces decouple the core state machine from the rendering engine, the
image encoder and the storage backend, so each can be swapped for a process,
an in-memory fake or a remote service.

# Key Interfaces

  - Renderer: turns diagram source into visual markup.
  - Rasterizer: encodes markup mounted on a Surface into an image payload.
  - Stage: mounts markup off-screen and hands out a Surface.
  - Sink: delivers an exported payload to the user.
  - KVStore: JSON key-value persistence used by the gateway.
  - Studio: the driving surface consumed by transport adapters (HTTP, MCP).
*/
package ports
