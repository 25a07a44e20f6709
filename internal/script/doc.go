// Package script loads workflows written in Lua. A script declares a
// global workflow table (title, description, input) and a global run
// function that receives the upfront data. The relay primitives are
// exposed as globals, and the standard library is sandboxed so a script
// can only reach the outside world through them
package script
