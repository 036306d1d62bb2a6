// Package transfer moves one repository from its source to its destination
// with an external git binary: mirror clone into a secured staging
// directory, mirror push to the destination remote, and unconditional
// staging cleanup. Credentials reach git only through ephemeral askpass
// helper scripts.
package transfer
