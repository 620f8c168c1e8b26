package ta

// Version is the TA build identity returned by CmdGetVersion. It is not
// tied to the module's own release process; it identifies the wire
// protocol and command set a running TA implements.
const Version = "airaccount-ta/1.0"
