package processors

import "github.com/shivpratapsingh111/adcollect/internal/domain/collect"

// DefaultRegistry wires one Processor per ObjectKind the worker pool
// can infer, the registry a production Link Runner hands to every
// Collection Task pass.
func DefaultRegistry() collect.ProcessorRegistry {
	return collect.ProcessorRegistry{
		collect.ObjectUser:      UserProcessor{},
		collect.ObjectGroup:     GroupProcessor{},
		collect.ObjectComputer:  ComputerProcessor{},
		collect.ObjectDomain:    DomainProcessor{},
		collect.ObjectGPO:       GPOProcessor{},
		collect.ObjectOU:        OUProcessor{},
		collect.ObjectContainer: ContainerProcessor{},
		collect.ObjectCert:      CertProcessor{},
	}
}
