// Package vpn manages the lifecycle of the optional OpenVPN tunnel.
//
// It covers:
//
//   - Installation: downloading the client, its elevation helper and the
//     shared configuration, then placing them under the install path
//   - Activation: starting the tunnel with administrator privileges
//   - Tracking: deriving liveness from the PID record or the Windows service
//   - Public IP lookup after every state transition
//
// # Architecture
//
// Manager is the facade used by the application. It is assembled from:
//
//   - InstallConfig: per-host paths and artifact URLs
//   - Installer and Fetcher: staged download and placement
//   - Elevator: sudo on linux, the runas helper or the native prompt on
//     mac and windows
//   - Tracker: PID record, process liveness and service control
//   - IPProber: public IP lookup
//
// # Connection Flow
//
//  1. The application checks IsInstalled and, if needed, calls Install
//  2. Connect writes the auth file and launches the tunnel elevated
//  3. Disconnect stops the tunnel and clears the PID record
//  4. Events are delivered to the OnEvent callback
//
// # Thread Safety
//
// Install, Connect and Disconnect are serialized by the Manager. State
// accessors may be called concurrently.
package vpn
