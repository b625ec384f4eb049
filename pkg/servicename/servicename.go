package servicename

const ServiceDomain = "bridge-scheduler.openbridge.top"
const ServiceName = "bridge-scheduler.openbridge.top"
