// Command clipforge is the highlight pipeline CLI. It submits highlight
// jobs, inspects and manages the queue, stores publish credentials, and
// runs the processing daemon.
package main
