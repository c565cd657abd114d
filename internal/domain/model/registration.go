package model

// ServiceCommand is one chat command advertised to the command manager.
type ServiceCommand struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Action       string `json:"action" yaml:"action"`
	Right        string `json:"right" yaml:"right"`
	Availability string `json:"availability" yaml:"availability"`
}

// ServiceDescription is the self-description published during the handshake.
type ServiceDescription struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Commands    []ServiceCommand `json:"commands" yaml:"commands"`
}

// RegistrationInfo is the command manager's answer: the topics this instance owns.
type RegistrationInfo struct {
	ServiceName  string `json:"serviceName"`
	ConsumeTopic string `json:"consumeTopic"`
	ProduceTopic string `json:"produceTopic"`
	Message      string `json:"message"`
}
