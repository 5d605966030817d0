// Package secrets provides persistent storage for Mona API credentials.
//
// Three backends with different security and deployment tradeoffs:
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Env: read-only environment variable access (external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// The login flow requires writable storage (file or keyring); running
// exports can use any backend including read-only env storage.
package secrets
