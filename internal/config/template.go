package config

// DefaultYAML is the template written by "ragflowmcp config init".
// Placeholders like ${RAGFLOW_API_KEY} count as unset; the env value wins.
const DefaultYAML = `version: 1

ragflow:
  host: localhost
  port: 9621
  api_key: ${RAGFLOW_API_KEY}
  # base_url overrides host and port
  base_url: ""

vanna:
  # empty host means the ragflow host
  host: ""
  port: 9621
  api_key: ${VANNA_API_KEY}
  base_url: ""

assets:
  # empty base_url means the ragflow base
  base_url: ""
  timeout_seconds: 8
  disabled: false

server:
  transport: stdio
  listen: "127.0.0.1:8087"
  mcp_path: "/mcp"
  sse_path: "/sse"
  rate_limit_rps: 10
  rate_limit_burst: 20
  trusted_proxies:
    - "127.0.0.1/32"
    - "::1/128"

log:
  level: info
  format: text
`
