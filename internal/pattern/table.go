package pattern

// Class is a bitmask of leaf classes. Callers pass the classes a context
// supports to Compile; leaves outside it are rejected.
type Class uint

const (
	// ClassFullMessage covers leaves that need the decoded message content.
	ClassFullMessage Class = 1 << iota
	// ClassMailbox covers leaves that need mailbox state: flags, position, score.
	ClassMailbox

	// ClassHeaders allows only envelope leaves.
	ClassHeaders Class = 0
	// ClassAll allows every leaf.
	ClassAll = ClassFullMessage | ClassMailbox
)

type argKind int

const (
	argNone argKind = iota
	argString
	argRange
	argDate
)

type leafDef struct {
	op      Op
	arg     argKind
	class   Class
	address bool // tests address lists; accepts the "%" group marker
}

// leafTable maps the letter after a marker to its leaf definition.
// Thread-relative leaves are not supported: records carry no thread links.
var leafTable = map[rune]leafDef{
	'A': {op: OpAll},
	'b': {op: OpBody, arg: argString, class: ClassFullMessage},
	'B': {op: OpWholeMsg, arg: argString, class: ClassFullMessage},
	'c': {op: OpCc, arg: argString, address: true},
	'C': {op: OpRecipient, arg: argString, address: true},
	'd': {op: OpDate, arg: argDate},
	'D': {op: OpDeleted, class: ClassMailbox},
	'e': {op: OpSender, arg: argString, address: true},
	'E': {op: OpExpired, class: ClassMailbox},
	'f': {op: OpFrom, arg: argString, address: true},
	'F': {op: OpFlagged, class: ClassMailbox},
	'g': {op: OpSigned},
	'G': {op: OpEncrypted},
	'h': {op: OpHeader, arg: argString, class: ClassFullMessage},
	'H': {op: OpSpam, arg: argString},
	'i': {op: OpMessageID, arg: argString},
	'k': {op: OpPGPKey},
	'l': {op: OpList},
	'L': {op: OpAddress, arg: argString, address: true},
	'm': {op: OpMessage, arg: argRange, class: ClassMailbox},
	'M': {op: OpMIMEType, arg: argString, class: ClassFullMessage},
	'n': {op: OpScore, arg: argRange, class: ClassMailbox},
	'N': {op: OpNew, class: ClassMailbox},
	'O': {op: OpOld, class: ClassMailbox},
	'p': {op: OpPersonalRecip},
	'P': {op: OpPersonalFrom},
	'Q': {op: OpReplied, class: ClassMailbox},
	'r': {op: OpDateReceived, arg: argDate},
	'R': {op: OpRead, class: ClassMailbox},
	's': {op: OpSubject, arg: argString},
	'S': {op: OpSuperseded, class: ClassMailbox},
	't': {op: OpTo, arg: argString, address: true},
	'T': {op: OpTagged, class: ClassMailbox},
	'u': {op: OpSubscribedList},
	'U': {op: OpUnread, class: ClassMailbox},
	'V': {op: OpVerified},
	'x': {op: OpReference, arg: argString},
	'X': {op: OpAttachments, arg: argRange, class: ClassFullMessage},
	'y': {op: OpXLabel, arg: argString},
	'Y': {op: OpTags, arg: argString},
	'z': {op: OpSize, arg: argRange},
}
