package ir

// Published subject identifiers defined by ISO/IEC 13250-2 (TMDM).
const (
	PSIBase = "http://psi.topicmaps.org/iso13250/model/"

	PSITypeInstance     = PSIBase + "type-instance"
	PSIType             = PSIBase + "type"
	PSIInstance         = PSIBase + "instance"
	PSISupertypeSubtype = PSIBase + "supertype-subtype"
	PSISupertype        = PSIBase + "supertype"
	PSISubtype          = PSIBase + "subtype"
	PSITopicName        = PSIBase + "topic-name"
)

// XML Schema datatypes used for occurrence and variant literals.
const (
	XSDString = "http://www.w3.org/2001/XMLSchema#string"
	XSDAnyURI = "http://www.w3.org/2001/XMLSchema#anyURI"
)
