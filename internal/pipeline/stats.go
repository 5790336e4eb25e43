package pipeline

// Stats counts what happened to the frames of one capture file.
type Stats struct {
	Received     uint64 // frames read from the file
	Filtered     uint64 // frames rejected by the BPF filter
	DecodeErrors uint64 // frames without a decodable IP/UDP or IP/TCP stack
	Fragments    uint64 // IPv4 fragments held for reassembly
	Candidates   uint64 // frames the SIP parser agreed to look at
	NotSIP       uint64 // candidates whose payload was not SIP
	ParseErrors  uint64 // candidates the parser failed on
	Records      uint64 // records handed to the classifier
}
