/*
Package runtime manages worker containers through containerd.

It owns two concerns:

  - Worker lifecycle: creating containers with the pool's fixed security
    policy (memory ceiling, one CPU core, capabilities dropped to the
    CHOWN/SETUID/SETGID minimum, no-new-privileges, read-only rootfs with a
    size-bounded tmpfs as the only writable path), starting, stopping,
    deleting, status probing, and prefix-scoped listing for rediscovery
    after a host restart.

  - File transport: exec-based read/write/remove/stat of files inside a
    running container, implementing protocol.Transport. Workers have no
    open ports; exec'ing coreutils through containerd tasks is the only
    channel the protocol needs.

Crashed workers are restarted by containerd's restart plugin via the
restart.status label; the pool re-registers them only on Initialize.
*/
package runtime
