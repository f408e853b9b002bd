// Package dispatch delivers encoded command frames to thermostats.
//
// Frames travel over TCP to a gateway process that relays them to the
// physical unit; each message carries the target's ip:port tag so one
// gateway can route for many devices. Every dispatch opens a fresh
// connection — there is no pool, matching the gateway's one-shot
// accept/forward contract.
//
// The Dispatcher offers immediate sends, delayed sends with stable
// ordering for equal delays, and a single-shot resend check driven by
// the command ledger's executed flag. The Service on top implements
// the batching policy for change-sets: the set_temp/mode pair goes
// first, the rest follow in descending attribute order with a growing
// stagger, and mode changes on slave units cascade a composite relay
// command to the master.
package dispatch
