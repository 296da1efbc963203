package types

// TopicType names the kind of payload a gossip envelope carries.
type TopicType string

const (
	TopicAddBlockGraph = TopicType("AddBlockGraph")
)

// Envelope is the unit exchanged between nodes on the graph channel.
type Envelope struct {
	Topic   TopicType `msgpack:"topic"`
	Payload []byte    `msgpack:"payload"`
}

func (env *Envelope) Marshal() ([]byte, error) {
	return Encode(env)
}

func UnmarshalEnvelope(bz []byte) (*Envelope, error) {
	env := new(Envelope)
	if err := Decode(bz, env); err != nil {
		return nil, err
	}
	return env, nil
}
