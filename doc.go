// Package gmmmml fits mixtures of multivariate Gaussian distributions to
// data while simultaneously choosing the number of components, using the
// minimum message length (MML) of the mixture as the single objective.
//
// The message length is a two-part code length (model description plus data
// given model) that jointly penalizes model complexity and lack of fit, so
// no separate model-selection criterion is needed: mixtures of different
// component counts are compared directly by their message lengths, and lower
// is better.
//
// Basic usage:
//
//	cfg := gmmmml.DefaultConfig()
//	result, err := gmmmml.Search(y, cfg)
//	// result.Mixture holds the means, covariances, weights and
//	// responsibilities of the best mixture found.
//	// result.MessageLength.Total is its message length in nats.
//
// Search starts from a single component covering the whole dataset and
// repeatedly perturbs the current mixture with the structural operators
// [SplitComponent], [MergeComponent] and [DeleteComponent], each of which
// re-optimizes its candidate with expectation-maximization before scoring
// it. The best-scoring candidate is accepted only if it improves on the
// current message length; otherwise the search stops.
//
// The operators, the EM optimizer ([ExpectationMaximization]) and the
// message-length estimator ([MixtureMessageLength]) are exported so that
// alternative search drivers can be built against the same
// [PerturbationResult] contract.
//
// # Covariance structures
//
// Components may have unconstrained ("full") or diagonal covariance
// matrices, selected with Config.CovarianceType. Data must have at least
// two dimensions; the one-dimensional Fisher-information term of the
// message length is not supported.
package gmmmml
